package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestGetReadsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	u := New("camera", time.Second, nil)
	res, err := u.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(res.Body) != "png-bytes" || res.ContentType != "image/png" {
		t.Fatalf("unexpected response %+v", res)
	}
}

func TestGetFailures(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer empty.Close()

	u := New("script", time.Second, nil)
	_, err := u.Get(context.Background(), bad.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Fatalf("expected status error, got %v", err)
	}
	if _, err := u.Get(context.Background(), empty.URL); !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected empty body error, got %v", err)
	}
}

func TestGetTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	u := New("camera", 50*time.Millisecond, nil)
	start := time.Now()
	if _, err := u.Get(context.Background(), srv.URL); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout not enforced")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	u := New("camera", time.Second, NewBreaker("camera", 2, time.Minute, 0))
	for i := 0; i < 2; i++ {
		if _, err := u.Get(context.Background(), srv.URL); err == nil {
			t.Fatal("expected failure")
		}
	}
	_, err := u.Get(context.Background(), srv.URL)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("open breaker must not reach the server, hits=%d", hits.Load())
	}
}
