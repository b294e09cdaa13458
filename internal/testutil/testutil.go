// Package testutil provides shared fixtures and assertions for HydroPipe tests.
package testutil

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/HydroPipe/internal/tracker"
)

// TestUserID is a canonical user id used across package tests.
const TestUserID = "+15550100000"

// SetupMessages completes /set_profile for a 70 kg, 175 cm, 30 year old user
// with 60 active minutes in Madrid.
var SetupMessages = []string{"/set_profile", "70", "175", "30", "60", "Madrid"}

// FixedWeather reports the same temperature for every city.
type FixedWeather float64

// Temperature implements tracker.WeatherLookup.
func (f FixedWeather) Temperature(ctx context.Context, city string) (float64, error) {
	return float64(f), nil
}

// FixedClock returns a clock that always reports now.
func FixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

// NewTracker returns a UTC tracker with a fixed clock and constant temperature.
func NewTracker(temp float64, now time.Time) *tracker.Tracker {
	return tracker.New(FixedWeather(temp), tracker.WithClock(FixedClock(now)), tracker.WithLocation(time.UTC))
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// DecodeResult decodes an API envelope, checks its status field and
// unmarshals the result field into target when target is non-nil.
func DecodeResult(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string, target interface{}) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode JSON response %q: %v", rr.Body.String(), err)
	}
	if envelope.Status != expectedStatus {
		t.Errorf("expected status %q, got %q", expectedStatus, envelope.Status)
	}
	if target == nil {
		return
	}
	if len(envelope.Result) == 0 {
		t.Fatalf("response has no result field: %s", rr.Body.String())
	}
	MustUnmarshalJSON(t, envelope.Result, target)
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
