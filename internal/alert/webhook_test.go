package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/authguard/internal/model"
)

func init() {
	retryBackoff = time.Millisecond
}

func countingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &called
}

func TestDispatchDefaultsToVerifyRequested(t *testing.T) {
	srv, called := countingServer(t, http.StatusOK)
	d := NewDispatcher([]WebhookConfig{{URL: srv.URL}}, nil)

	d.Dispatch(Event{Type: EventVerifyRequested, UserUID: "u1"})
	d.Dispatch(Event{Type: EventLocked, UserUID: "u1"})
	d.Wait()

	if called.Load() != 1 {
		t.Errorf("expected 1 call, got %d", called.Load())
	}
}

func TestDispatchMatchesSubscribedEvents(t *testing.T) {
	srv1, called1 := countingServer(t, http.StatusOK)
	srv2, called2 := countingServer(t, http.StatusOK)
	d := NewDispatcher([]WebhookConfig{
		{URL: srv1.URL, Events: []string{EventLocked}},
		{URL: srv2.URL, Events: []string{"*"}},
	}, nil)

	d.Dispatch(Event{Type: EventLocked})
	d.Dispatch(Event{Type: EventRecovered})
	d.Wait()

	if called1.Load() != 1 {
		t.Errorf("expected 1 call on locked-only webhook, got %d", called1.Load())
	}
	if called2.Load() != 2 {
		t.Errorf("expected 2 calls on wildcard webhook, got %d", called2.Load())
	}
}

func TestDispatchCarriesDecision(t *testing.T) {
	got := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		got <- ev
	}))
	defer srv.Close()

	d := NewDispatcher([]WebhookConfig{{URL: srv.URL, Headers: map[string]string{"X-Test": "1"}}}, nil)
	decision := model.Decision{Decision: model.VerdictVerify, Reason: "step up", SessionID: "s1"}
	d.Dispatch(Event{Type: EventVerifyRequested, Decision: &decision})
	d.Wait()

	ev := <-got
	if ev.Decision == nil || ev.Decision.Decision != model.VerdictVerify || ev.Decision.SessionID != "s1" {
		t.Errorf("expected full decision in payload, got %+v", ev.Decision)
	}
}

func TestNilDispatcher(t *testing.T) {
	if NewDispatcher(nil, nil) != nil {
		t.Fatal("expected nil dispatcher for empty configs")
	}
	var d *Dispatcher
	d.Dispatch(Event{Type: EventVerifyRequested})
	d.Wait()
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := Send(context.Background(), WebhookConfig{URL: srv.URL}, Event{Type: EventLocked}); err != nil {
		t.Errorf("expected success after retries, got: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	srv, called := countingServer(t, http.StatusBadRequest)

	if err := Send(context.Background(), WebhookConfig{URL: srv.URL}, Event{Type: EventLocked}); err == nil {
		t.Error("expected error on 400")
	}
	if called.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", called.Load())
	}
}

func TestGiveUpAfterMaxRetries(t *testing.T) {
	srv, called := countingServer(t, http.StatusBadGateway)

	if err := Send(context.Background(), WebhookConfig{URL: srv.URL}, Event{Type: EventLocked}); err == nil {
		t.Error("expected error after exhausting retries")
	}
	if called.Load() != maxRetries {
		t.Errorf("expected %d attempts, got %d", maxRetries, called.Load())
	}
}

func TestFormatSlackBlockKit(t *testing.T) {
	data, err := FormatPayload("slack", Event{Type: EventLocked, UserUID: "u1", Reason: "risk"})
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("slack format is not valid JSON: %v", err)
	}
	blocks, ok := parsed["blocks"].([]any)
	if !ok || len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %v", parsed["blocks"])
	}
	header, _ := blocks[0].(map[string]any)
	if header["type"] != "header" {
		t.Errorf("expected header block, got %v", header["type"])
	}
}

func TestFormatPagerDutySeverity(t *testing.T) {
	tests := []struct {
		typ  string
		want string
	}{
		{EventLocked, "critical"},
		{EventVerifyRequested, "warning"},
		{EventRecovered, "info"},
	}
	for _, tt := range tests {
		data, err := FormatPayload("pagerduty", Event{Type: tt.typ})
		if err != nil {
			t.Fatal(err)
		}
		var parsed struct {
			Payload struct {
				Severity string `json:"severity"`
				Source   string `json:"source"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(data, &parsed); err != nil {
			t.Fatal(err)
		}
		if parsed.Payload.Severity != tt.want || parsed.Payload.Source != "authguard" {
			t.Errorf("%s: got %+v", tt.typ, parsed.Payload)
		}
	}
}
