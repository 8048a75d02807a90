package sendgrid

import "fmt"

// Message is one outbound email to one recipient
type Message struct {
	To         string
	ToName     string
	Subject    string
	HTML       string
	CampaignID string
}

// SendResult is the provider's answer to one send call
type SendResult struct {
	StatusCode int
	MessageID  string
}

// DayStat is one day of delivery statistics
type DayStat struct {
	Date      string `json:"date"`
	Delivered int    `json:"delivered"`
	Opens     int    `json:"opens"`
	Clicks    int    `json:"clicks"`
	Bounces   int    `json:"bounces"`
}

// GlobalStats aggregates a stats window with derived rates. Rates are
// percentages of delivered count and 0 when nothing was delivered.
type GlobalStats struct {
	Delivered  int     `json:"delivered"`
	Opens      int     `json:"opens"`
	Clicks     int     `json:"clicks"`
	Bounces    int     `json:"bounces"`
	OpenRate   float64 `json:"open_rate"`
	ClickRate  float64 `json:"click_rate"`
	BounceRate float64 `json:"bounce_rate"`
}

// APIError is a non-success response from the SendGrid API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sendgrid API error: HTTP %d: %s", e.StatusCode, e.Body)
}

// wire types for the v3 mail/send request

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	ReplyTo          *emailAddress     `json:"reply_to,omitempty"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
	Headers          map[string]string `json:"headers,omitempty"`
}

// wire types for the v3 stats response

type statsEntry struct {
	Date  string `json:"date"`
	Stats []struct {
		Metrics struct {
			Delivered int `json:"delivered"`
			Opens     int `json:"opens"`
			Clicks    int `json:"clicks"`
			Bounces   int `json:"bounces"`
		} `json:"metrics"`
	} `json:"stats"`
}
