package httpkit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient_DefaultTimeout(t *testing.T) {
	c := NewClient()
	if c.Timeout != DefaultTimeout {
		t.Errorf("expected %v timeout, got %v", DefaultTimeout, c.Timeout)
	}
	if c2 := NewClient(WithTimeout(2 * time.Second)); c2.Timeout != 2*time.Second {
		t.Errorf("expected 2s timeout, got %v", c2.Timeout)
	}
}

func TestGetBodySendsUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer srv.Close()

	body, err := GetBody(context.Background(), NewClient(WithUserAgent("TestBot/1.0")), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "TestBot/1.0" {
		t.Errorf("expected TestBot/1.0, got %q", body)
	}

	body, err = GetBody(context.Background(), NewClient(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(body), "HydroPipe/") {
		t.Errorf("expected HydroPipe/ prefix, got %q", body)
	}
}

func TestGetBodyStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "city not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := GetBody(context.Background(), NewClient(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusNotFound || !strings.Contains(se.Body, "city not found") {
		t.Errorf("unexpected status error: %+v", se)
	}
}

func TestGetBodyHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := GetBody(ctx, NewClient(), srv.URL); err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestReadErrorBodyNil(t *testing.T) {
	if got := ReadErrorBody(nil, 10); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}
