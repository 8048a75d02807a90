package sendgrid

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cleanearth/mailblast/internal/config"
)

func testClient(baseURL string) *Client {
	return NewClient(&config.SendGridConfig{
		APIKey:      "SG.test",
		BaseURL:     baseURL,
		FromEmail:   "origination@clean-earth.org",
		FromName:    "Clean Earth Renewables",
		ReplyTo:     "reply@clean-earth.org",
		SendTimeout: 5 * time.Second,
	})
}

func TestSendAccepted(t *testing.T) {
	var gotBody mailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer SG.test" {
			t.Errorf("unexpected auth header: %s", auth)
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.Header().Set("X-Message-Id", "msg-123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).Send(context.Background(), &Message{
		To:         "ada@example.com",
		ToName:     "Ada Lovelace",
		Subject:    "Hello",
		HTML:       "<p>Hi</p>",
		CampaignID: "c-1",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if result.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", result.StatusCode)
	}
	if result.MessageID != "msg-123" {
		t.Errorf("expected msg-123, got %s", result.MessageID)
	}

	if len(gotBody.Personalizations) != 1 || gotBody.Personalizations[0].To[0].Email != "ada@example.com" {
		t.Errorf("unexpected personalizations: %+v", gotBody.Personalizations)
	}
	if gotBody.From.Email != "origination@clean-earth.org" {
		t.Errorf("unexpected from: %+v", gotBody.From)
	}
	if gotBody.Headers["X-Campaign-ID"] != "c-1" {
		t.Errorf("missing campaign header: %v", gotBody.Headers)
	}
	if gotBody.Headers["Precedence"] != "bulk" {
		t.Errorf("missing bulk precedence: %v", gotBody.Headers)
	}
}

func TestSendNonAcceptedIsError(t *testing.T) {
	// 200 is not 202: anything but accepted is a failure.
	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusTooManyRequests, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(`{"errors":[{"message":"nope"}]}`))
		}))

		result, err := testClient(srv.URL).Send(context.Background(), &Message{To: "a@example.com"})
		srv.Close()

		if err == nil {
			t.Errorf("status %d: expected error", status)
			continue
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != status {
			t.Errorf("status %d: unexpected error %v", status, err)
		}
		if result == nil || result.StatusCode != status {
			t.Errorf("status %d: expected result with status code, got %+v", status, result)
		}
	}
}

func TestIsTemporary(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&APIError{StatusCode: http.StatusTooManyRequests}, true},
		{&APIError{StatusCode: http.StatusInternalServerError}, true},
		{&APIError{StatusCode: http.StatusBadGateway}, true},
		{&APIError{StatusCode: http.StatusBadRequest}, false},
		{&APIError{StatusCode: http.StatusUnauthorized}, false},
		{errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		if got := IsTemporary(tt.err); got != tt.want {
			t.Errorf("IsTemporary(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/stats" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("aggregated_by") != "day" {
			t.Errorf("expected day aggregation, got %s", q.Get("aggregated_by"))
		}
		if q.Get("start_date") == "" || q.Get("end_date") == "" {
			t.Error("missing date range")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"date":"2025-08-25","stats":[{"metrics":{"delivered":10,"opens":4,"clicks":2,"bounces":1}}]},
			{"date":"2025-08-26","stats":[{"metrics":{"delivered":5,"opens":1,"clicks":0,"bounces":0}}]},
			{"date":"2025-08-27","stats":[]}
		]`))
	}))
	defer srv.Close()

	days, err := testClient(srv.URL).Stats(context.Background(), 7)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if len(days) != 3 {
		t.Fatalf("expected 3 days, got %d", len(days))
	}
	if days[0].Date != "2025-08-25" || days[0].Delivered != 10 || days[0].Opens != 4 {
		t.Errorf("unexpected first day: %+v", days[0])
	}
	// A day with no stats entry decodes to zeros.
	if days[2].Delivered != 0 {
		t.Errorf("expected zero delivered, got %+v", days[2])
	}
}

func TestGlobalStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"date":"2025-08-25","stats":[{"metrics":{"delivered":40,"opens":10,"clicks":4,"bounces":2}}]},
			{"date":"2025-08-26","stats":[{"metrics":{"delivered":10,"opens":5,"clicks":1,"bounces":0}}]}
		]`))
	}))
	defer srv.Close()

	totals, err := testClient(srv.URL).GlobalStats(context.Background())
	if err != nil {
		t.Fatalf("global stats failed: %v", err)
	}
	if totals.Delivered != 50 || totals.Opens != 15 || totals.Clicks != 5 || totals.Bounces != 2 {
		t.Errorf("unexpected totals: %+v", totals)
	}
	if totals.OpenRate != 30 || totals.ClickRate != 10 || totals.BounceRate != 4 {
		t.Errorf("unexpected rates: %+v", totals)
	}
}

func TestGlobalStatsNoDeliveries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	totals, err := testClient(srv.URL).GlobalStats(context.Background())
	if err != nil {
		t.Fatalf("global stats failed: %v", err)
	}
	if totals.OpenRate != 0 || totals.ClickRate != 0 || totals.BounceRate != 0 {
		t.Errorf("expected zero rates, got %+v", totals)
	}
}

func TestStatsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Stats(context.Background(), 7)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 APIError, got %v", err)
	}
}
