// Package dispatch runs campaigns: it fans recipients out to the
// provider with bounded concurrency, retries temporary failures and
// records every outcome in a batch tracker.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cleanearth/mailblast/internal/batch"
	"github.com/cleanearth/mailblast/internal/metrics"
	"github.com/cleanearth/mailblast/internal/ratelimit"
	"github.com/cleanearth/mailblast/internal/recipients"
	"github.com/cleanearth/mailblast/internal/sendgrid"
)

// Sender delivers one message to one recipient
type Sender interface {
	Send(ctx context.Context, msg *sendgrid.Message) (*sendgrid.SendResult, error)
}

// Limiter gates outbound sends. A nil Limiter means unlimited.
type Limiter interface {
	Allow(now time.Time) error
}

// Campaign is one dispatch request: a rendered message and the
// recipient set it goes to
type Campaign struct {
	Subject    string
	Template   string
	Source     batch.Source
	FileName   string
	HTML       string
	Recipients []recipients.Recipient
}

// Config contains runner settings
type Config struct {
	Concurrency   int
	MaxRetries    int
	RetryInterval time.Duration
	SendTimeout   time.Duration
	FromEmail     string
}

// Runner dispatches campaigns
type Runner struct {
	sender        Sender
	store         *batch.Store
	limiter       Limiter
	logger        *slog.Logger
	concurrency   int
	maxRetries    int
	retryInterval time.Duration
	sendTimeout   time.Duration
	fromEmail     string
}

// NewRunner creates a campaign runner
func NewRunner(sender Sender, store *batch.Store, limiter Limiter, cfg Config, logger *slog.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}

	return &Runner{
		sender:        sender,
		store:         store,
		limiter:       limiter,
		logger:        logger,
		concurrency:   cfg.Concurrency,
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
		sendTimeout:   cfg.SendTimeout,
		fromEmail:     cfg.FromEmail,
	}
}

// Run sends the campaign to every recipient and persists the batch
// record. Every recipient gets exactly one outcome, so the summary
// counts always add up to the recipient total. The summary is returned
// even when persisting it fails; callers surface that error as a
// warning.
func (r *Runner) Run(ctx context.Context, c *Campaign) (*batch.Summary, error) {
	tracker := batch.NewTracker(batch.Params{
		Subject:     c.Subject,
		Template:    c.Template,
		Source:      c.Source,
		FileName:    c.FileName,
		FromEmail:   r.fromEmail,
		TotalEmails: len(c.Recipients),
	})

	logger := r.logger.With("campaign_id", tracker.CampaignID())
	logger.Info("dispatching campaign",
		"recipients", len(c.Recipients),
		"subject", c.Subject,
		"source", c.Source,
	)
	metrics.IncCampaigns(string(c.Source))

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup

	for _, rcpt := range c.Recipients {
		if ctx.Err() != nil {
			// The run was canceled: the rest of the batch is recorded as
			// failed so the summary still accounts for every recipient.
			r.record(tracker, logger, batch.SendOutcome{
				Email:  rcpt.Email,
				Status: batch.StatusFailed,
				Error:  "campaign canceled",
			})
			metrics.IncMessagesFailed("canceled")
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(rcpt recipients.Recipient) {
			defer wg.Done()
			defer func() { <-sem }()
			r.record(tracker, logger, r.sendOne(ctx, tracker.CampaignID(), c, rcpt))
		}(rcpt)
	}
	wg.Wait()

	summary, err := tracker.Finalize()
	if err != nil {
		return nil, err
	}

	logger.Info("campaign finished",
		"total", summary.TotalEmails,
		"successful", summary.SuccessfulEmails,
		"failed", summary.FailedEmails,
		"success_rate", summary.SuccessRate,
		"processing_time", summary.ProcessingTime,
	)

	if err := r.store.Save(summary, tracker.Log()); err != nil {
		logger.Error("failed to persist batch record", "error", err)
		return summary, err
	}
	return summary, nil
}

func (r *Runner) record(tracker *batch.Tracker, logger *slog.Logger, outcome batch.SendOutcome) {
	if err := tracker.Record(outcome); err != nil {
		logger.Error("failed to record outcome", "email", outcome.Email, "error", err)
	}
}

// sendOne attempts delivery to one recipient, retrying temporary
// failures with exponential backoff
func (r *Runner) sendOne(ctx context.Context, campaignID string, c *Campaign, rcpt recipients.Recipient) batch.SendOutcome {
	msg := &sendgrid.Message{
		To:         rcpt.Email,
		ToName:     rcpt.Name,
		Subject:    c.Subject,
		HTML:       personalize(c.HTML, rcpt),
		CampaignID: campaignID,
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.IncSendRetries()
			select {
			case <-ctx.Done():
				metrics.IncMessagesFailed("canceled")
				return batch.SendOutcome{
					Email:  rcpt.Email,
					Status: batch.StatusFailed,
					Error:  "campaign canceled",
				}
			case <-time.After(r.backoff(attempt)):
			}
		}

		if r.limiter != nil {
			if err := r.limiter.Allow(time.Now()); err != nil {
				var lerr *ratelimit.LimitExceededError
				if errors.As(err, &lerr) {
					metrics.IncRateLimitExceeded(lerr.Window)
				}
				metrics.IncMessagesFailed("rate_limited")
				return batch.SendOutcome{
					Email:  rcpt.Email,
					Status: batch.StatusFailed,
					Error:  err.Error(),
				}
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
		start := time.Now()
		result, err := r.sender.Send(sendCtx, msg)
		cancel()
		metrics.ObserveSendDuration(time.Since(start).Seconds())

		if err == nil {
			metrics.IncMessagesSent()
			return batch.SendOutcome{
				Email:        rcpt.Email,
				Status:       batch.StatusSuccess,
				ResponseCode: result.StatusCode,
				MessageID:    result.MessageID,
			}
		}

		lastErr = err
		if !sendgrid.IsTemporary(err) {
			break
		}
	}

	outcome := batch.SendOutcome{
		Email:  rcpt.Email,
		Status: batch.StatusFailed,
		Error:  lastErr.Error(),
	}
	var apiErr *sendgrid.APIError
	if errors.As(lastErr, &apiErr) {
		outcome.ResponseCode = apiErr.StatusCode
		metrics.IncMessagesFailed("api_error")
	} else {
		metrics.IncMessagesFailed("transport_error")
	}
	return outcome
}

// backoff calculates exponential backoff duration: retry_interval *
// 2^(attempt-1), capped at one minute
func (r *Runner) backoff(attempt int) time.Duration {
	multiplier := 1 << (attempt - 1)
	if multiplier > 16 {
		multiplier = 16
	}

	backoff := time.Duration(multiplier) * r.retryInterval

	maxBackoff := time.Minute
	if backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}

// personalize substitutes per-recipient placeholders in the rendered
// message body
func personalize(html string, rcpt recipients.Recipient) string {
	return strings.NewReplacer(
		"{{name}}", rcpt.Name,
		"{{email}}", rcpt.Email,
	).Replace(html)
}
