package healthconnect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"healthsync/internal/health"
)

func TestClient_ReadRecords(t *testing.T) {
	var gotFilter health.ReadOptions
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/records/HeartRate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&gotFilter)
		_, _ = w.Write([]byte(`{"records":[{"startTime":"2026-03-01T10:00:00Z","endTime":"2026-03-01T10:05:00Z","samples":[{"time":"2026-03-01T10:00:00Z","beatsPerMinute":61},{"time":"2026-03-01T10:01:00Z","beatsPerMinute":63}]}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL+"/", "secret")
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	res, err := c.ReadRecords(context.Background(), health.HeartRate, health.ReadOptions{
		TimeRangeFilter: health.TimeRangeFilter{Operator: "between", StartTime: start, EndTime: start.Add(24 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(res.Records) != 1 || len(res.Records[0].Samples) != 2 {
		t.Fatalf("records=%+v", res.Records)
	}
	if gotFilter.TimeRangeFilter.Operator != "between" || !gotFilter.TimeRangeFilter.StartTime.Equal(start) {
		t.Fatalf("filter=%+v", gotFilter.TimeRangeFilter)
	}
	if got := health.AggregateHeartRate(res.Records); got != 62 {
		t.Fatalf("heartRate=%v want=62", got)
	}
}

func TestClient_Initialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"initialized":true}`))
	}))
	defer srv.Close()
	ok, err := NewClient(srv.Client(), srv.URL, "").Initialize(context.Background())
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, health.ErrPermissionDenied},
		{http.StatusUnauthorized, health.ErrPermissionDenied},
		{http.StatusServiceUnavailable, health.ErrProviderUnavailable},
		{http.StatusInternalServerError, health.ErrTransientIO},
		{http.StatusTooManyRequests, health.ErrTransientIO},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		_, err := NewClient(srv.Client(), srv.URL, "").ReadRecords(context.Background(), health.Steps, health.ReadOptions{})
		srv.Close()
		if !errors.Is(err, tt.want) {
			t.Fatalf("status=%d err=%v want %v", tt.status, err, tt.want)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != tt.status {
			t.Fatalf("status=%d expected APIError, got %v", tt.status, err)
		}
	}
}

func TestClient_RequestPermission(t *testing.T) {
	var got permissionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/permissions" {
			t.Errorf("path=%s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	if err := NewClient(srv.Client(), srv.URL, "").RequestPermission(context.Background(), health.ReadPermissions()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(got.Permissions) != len(health.AllRecordTypes) {
		t.Fatalf("permissions=%d want=%d", len(got.Permissions), len(health.AllRecordTypes))
	}
}

func TestClient_UnknownRecordType(t *testing.T) {
	c := NewClient(nil, "http://127.0.0.1:1", "")
	if _, err := c.ReadRecords(context.Background(), health.RecordType("Glucose"), health.ReadOptions{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestClient_BridgeDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	_, err := NewClient(nil, url, "").Initialize(context.Background())
	if !errors.Is(err, health.ErrProviderUnavailable) {
		t.Fatalf("err=%v want=%v", err, health.ErrProviderUnavailable)
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)
	hc := &http.Client{Timeout: 50 * time.Millisecond}
	_, err := NewClient(hc, srv.URL, "").ReadRecords(context.Background(), health.Steps, health.ReadOptions{})
	if !errors.Is(err, health.ErrTransientIO) {
		t.Fatalf("err=%v want=%v", err, health.ErrTransientIO)
	}
}
