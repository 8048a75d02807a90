// Package batch tracks per-recipient send outcomes for one campaign run
// and persists the finalized summary.
package batch

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Source says where the recipient set came from
type Source string

const (
	SourceManual Source = "manual"
	SourceFile   Source = "file"
)

// Status is the outcome of one send attempt
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// SendOutcome records one attempted delivery to one recipient
type SendOutcome struct {
	Email        string    `json:"email"`
	Status       Status    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	ResponseCode int       `json:"response_code,omitempty"`
	MessageID    string    `json:"message_id,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Summary is the persisted record of one campaign run
type Summary struct {
	CampaignID       string        `json:"campaign_id"`
	Subject          string        `json:"subject"`
	Template         string        `json:"template"`
	Source           Source        `json:"source"`
	FileName         string        `json:"file_name,omitempty"`
	FromEmail        string        `json:"from_email"`
	TotalEmails      int           `json:"total_emails"`
	SuccessfulEmails int           `json:"successful_emails"`
	FailedEmails     int           `json:"failed_emails"`
	SuccessRate      string        `json:"success_rate"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	ProcessingTime   string        `json:"processing_time"`
	Recipients       []SendOutcome `json:"recipients"`
}

// Params describes the campaign a tracker is created for
type Params struct {
	Subject     string
	Template    string
	Source      Source
	FileName    string
	FromEmail   string
	TotalEmails int
}

// Tracker accumulates send outcomes for one campaign. It is safe for
// concurrent Record calls; one tracker must not be reused across
// campaigns.
type Tracker struct {
	mu        sync.Mutex
	summary   Summary
	seen      map[string]bool
	finalized bool
	logLines  []string
}

// NewTracker starts a new campaign batch with a fresh campaign ID
func NewTracker(p Params) *Tracker {
	t := &Tracker{
		summary: Summary{
			CampaignID:  uuid.New().String(),
			Subject:     p.Subject,
			Template:    p.Template,
			Source:      p.Source,
			FileName:    p.FileName,
			FromEmail:   p.FromEmail,
			TotalEmails: p.TotalEmails,
			StartTime:   time.Now(),
		},
		seen: make(map[string]bool),
	}
	t.logf("INFO", "campaign %s started: %d recipients, subject %q, template %q",
		t.summary.CampaignID, p.TotalEmails, p.Subject, p.Template)
	return t
}

// CampaignID returns the batch's unique identifier
func (t *Tracker) CampaignID() string {
	return t.summary.CampaignID
}

// StartTime returns when the batch was started
func (t *Tracker) StartTime() time.Time {
	return t.summary.StartTime
}

// Record appends one send outcome and bumps the matching counter.
// Each recipient may be recorded once; duplicates and calls after
// Finalize return an error instead of corrupting the counts.
func (t *Tracker) Record(outcome SendOutcome) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finalized {
		return fmt.Errorf("batch %s already finalized", t.summary.CampaignID)
	}
	if t.seen[outcome.Email] {
		return fmt.Errorf("outcome for %s already recorded", outcome.Email)
	}
	t.seen[outcome.Email] = true

	if outcome.Timestamp.IsZero() {
		outcome.Timestamp = time.Now()
	}

	t.summary.Recipients = append(t.summary.Recipients, outcome)
	switch outcome.Status {
	case StatusSuccess:
		t.summary.SuccessfulEmails++
		t.logf("INFO", "email sent to %s (status %d, message id %s)",
			outcome.Email, outcome.ResponseCode, outcome.MessageID)
	default:
		t.summary.FailedEmails++
		t.logf("ERROR", "failed to send to %s: %s", outcome.Email, outcome.Error)
	}
	return nil
}

// Finalize freezes the batch, computing end time, processing time and
// success rate. It may be called once.
func (t *Tracker) Finalize() (*Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finalized {
		return nil, fmt.Errorf("batch %s already finalized", t.summary.CampaignID)
	}
	t.finalized = true

	t.summary.EndTime = time.Now()
	t.summary.ProcessingTime = t.summary.EndTime.Sub(t.summary.StartTime).String()
	if t.summary.TotalEmails > 0 {
		rate := float64(t.summary.SuccessfulEmails) / float64(t.summary.TotalEmails) * 100
		t.summary.SuccessRate = fmt.Sprintf("%.2f%%", rate)
	} else {
		t.summary.SuccessRate = "0%"
	}

	t.logf("INFO", "campaign %s completed: %d total, %d successful, %d failed, success rate %s, processing time %s",
		t.summary.CampaignID, t.summary.TotalEmails, t.summary.SuccessfulEmails,
		t.summary.FailedEmails, t.summary.SuccessRate, t.summary.ProcessingTime)

	out := t.summary
	out.Recipients = make([]SendOutcome, len(t.summary.Recipients))
	copy(out.Recipients, t.summary.Recipients)
	return &out, nil
}

// Log returns the human-readable chronological log of the batch
func (t *Tracker) Log() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.logLines, "\n") + "\n"
}

func (t *Tracker) logf(level, format string, args ...any) {
	line := fmt.Sprintf("%s - %s - %s",
		time.Now().Format("2006-01-02 15:04:05"), level, fmt.Sprintf(format, args...))
	t.logLines = append(t.logLines, line)
}
