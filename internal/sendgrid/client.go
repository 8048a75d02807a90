// Package sendgrid is a thin client for the SendGrid v3 mail and stats
// APIs. The provider is a black box: one send call per recipient, 202 is
// the only accepted status.
package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cleanearth/mailblast/internal/config"
)

// Client talks to the SendGrid API
type Client struct {
	baseURL    string
	apiKey     string
	fromEmail  string
	fromName   string
	replyTo    string
	httpClient *http.Client
}

// NewClient creates a SendGrid client from configuration
func NewClient(cfg *config.SendGridConfig) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		replyTo:   cfg.ReplyTo,
		httpClient: &http.Client{
			Timeout: cfg.SendTimeout,
		},
	}
}

// Send delivers one message to one recipient. Only HTTP 202 counts as
// success; any other status returns an APIError alongside the result.
func (c *Client) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	req := mailRequest{
		Personalizations: []personalization{
			{To: []emailAddress{{Email: msg.To, Name: msg.ToName}}},
		},
		From:    emailAddress{Email: c.fromEmail, Name: c.fromName},
		Subject: msg.Subject,
		Content: []content{{Type: "text/html", Value: msg.HTML}},
		Headers: map[string]string{
			"List-Unsubscribe": fmt.Sprintf("<mailto:unsubscribe@%s>", domainOf(c.fromEmail)),
			"Precedence":       "bulk",
			"X-Campaign-ID":    msg.CampaignID,
		},
	}
	if c.replyTo != "" {
		req.ReplyTo = &emailAddress{Email: c.replyTo}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	result := &SendResult{
		StatusCode: resp.StatusCode,
		MessageID:  resp.Header.Get("X-Message-Id"),
	}

	if resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return result, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return result, nil
}

// Stats returns daily delivery statistics for the last n days, oldest
// day first
func (c *Client) Stats(ctx context.Context, days int) ([]DayStat, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	params := url.Values{}
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	params.Set("aggregated_by", "day")

	var entries []statsEntry
	if err := c.get(ctx, "/v3/stats?"+params.Encode(), &entries); err != nil {
		return nil, err
	}

	out := make([]DayStat, 0, len(entries))
	for _, e := range entries {
		day := DayStat{Date: e.Date}
		if len(e.Stats) > 0 {
			m := e.Stats[0].Metrics
			day.Delivered = m.Delivered
			day.Opens = m.Opens
			day.Clicks = m.Clicks
			day.Bounces = m.Bounces
		}
		out = append(out, day)
	}
	return out, nil
}

// GlobalStats sums the last 30 days and derives open/click/bounce rates
func (c *Client) GlobalStats(ctx context.Context) (*GlobalStats, error) {
	days, err := c.Stats(ctx, 30)
	if err != nil {
		return nil, err
	}

	totals := &GlobalStats{}
	for _, d := range days {
		totals.Delivered += d.Delivered
		totals.Opens += d.Opens
		totals.Clicks += d.Clicks
		totals.Bounces += d.Bounces
	}
	if totals.Delivered > 0 {
		totals.OpenRate = float64(totals.Opens) / float64(totals.Delivered) * 100
		totals.ClickRate = float64(totals.Clicks) / float64(totals.Delivered) * 100
		totals.BounceRate = float64(totals.Bounces) / float64(totals.Delivered) * 100
	}
	return totals, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsTemporary reports whether a send error is worth retrying:
// transport failures, rate limiting and provider-side errors.
func IsTemporary(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	// Transport-level failures (timeouts, refused connections).
	return err != nil
}

func domainOf(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return email
}
