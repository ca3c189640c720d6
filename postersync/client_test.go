package postersync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func testPosterClient(baseURL string) *posterClient {
	return &posterClient{
		baseURL:    baseURL,
		token:      "test-token",
		http:       &http.Client{Timeout: 5 * time.Second},
		limiter:    time.Tick(time.Microsecond),
		maxRetries: 3,
		retryBase:  time.Millisecond,
	}
}

func TestGetListRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"response":[{"spot_id":"1","name":"Main"}]}`))
	}))
	defer srv.Close()

	client := testPosterClient(srv.URL)
	resp, err := client.getList(context.Background(), "spots.getSpots", nil)
	if err != nil {
		t.Fatalf("getList: %v", err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(resp.Items))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestGetListExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := testPosterClient(srv.URL)
	client.maxRetries = 2

	_, err := client.getList(context.Background(), "spots.getSpots", nil)
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	var httpErr *posterHTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("err = %v, want 500 posterHTTPError", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3 (1 attempt + 2 retries)", got)
	}
}

func TestGetListDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := testPosterClient(srv.URL)
	if _, err := client.getList(context.Background(), "spots.getSpots", nil); err == nil {
		t.Fatal("expected an error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestGetListDoesNotRetryAPIErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"response":null,"error":{"code":"32","message":"token is not valid"}}`))
	}))
	defer srv.Close()

	client := testPosterClient(srv.URL)
	if _, err := client.getList(context.Background(), "clients.getClients", nil); err == nil {
		t.Fatal("expected an error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &posterHTTPError{StatusCode: 500}, true},
		{"bad gateway", &posterHTTPError{StatusCode: 502}, true},
		{"rate limited", &posterHTTPError{StatusCode: 429}, true},
		{"unauthorized", &posterHTTPError{StatusCode: 401}, false},
		{"not found", &posterHTTPError{StatusCode: 404}, false},
		{"network error", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}, true},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
		{"api error", errors.New("poster api error 32: token is not valid"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Fatalf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
