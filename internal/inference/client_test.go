package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string, retries int) *Client {
	c := NewClient(Config{URL: url, APIKey: "secret", Timeout: 2 * time.Second, MaxRetries: retries}, nil)
	c.backoff = func(int) time.Duration { return time.Millisecond }
	return c
}

func replyWith(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"response": text})
	}
}

func TestClientChatRequestShape(t *testing.T) {
	var got chatRequest
	var apiKey, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-api-key")
		contentType = r.Header.Get("Content-Type")
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		replyWith("hello")(w, r)
	}))
	defer srv.Close()

	reply, err := newTestClient(srv.URL, 0).Chat(context.Background(), "agent-1", "hi there")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "hello" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if apiKey != "secret" || contentType != "application/json" {
		t.Fatalf("unexpected headers key=%q ct=%q", apiKey, contentType)
	}
	if got.AgentID != "agent-1" || got.Message != "hi there" {
		t.Fatalf("unexpected body %+v", got)
	}
	if !strings.HasPrefix(got.UserID, "user-") || !strings.HasPrefix(got.SessionID, "session-") {
		t.Fatalf("unexpected identifiers %+v", got)
	}
}

func TestClientChatErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad agent", http.StatusBadRequest)
		}, "400"},
		{"garbage body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>"))
		}, "decode"},
		{"empty response", replyWith(""), "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newTestClient(srv.URL, 0).Chat(context.Background(), "a", "m")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestClientDisabled(t *testing.T) {
	c := NewClient(Config{}, nil)
	if c.Enabled() {
		t.Fatal("client without URL must be disabled")
	}
	if _, err := c.Chat(context.Background(), "a", "m"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestClientRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		replyWith("ok")(w, r)
	}))
	defer srv.Close()

	reply, err := newTestClient(srv.URL, 2).Chat(context.Background(), "a", "m")
	if err != nil || reply != "ok" {
		t.Fatalf("expected success after retries, got %q err=%v", reply, err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 3 calls, got %d", n)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL, 3).Chat(context.Background(), "a", "m"); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected a single call, got %d", n)
	}
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	start := time.Now()
	if _, err := c.Chat(context.Background(), "a", "m"); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("request was not bounded by the timeout")
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := exponentialBackoff(tt.attempt); got != tt.want {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
