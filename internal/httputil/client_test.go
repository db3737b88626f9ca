package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMockHTTPClient_QueueAndRecord(t *testing.T) {
	t.Parallel()

	m := NewMockHTTPClient().
		AddResponse(http.StatusConflict, `{"error":"already recording"}`).
		AddErrorResponse(errors.New("connection refused"))

	req, _ := http.NewRequest(http.MethodPost, "http://tracker/api/recording/start", strings.NewReader(`{}`))
	resp, err := m.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusConflict || string(body) != `{"error":"already recording"}` {
		t.Errorf("got %d %q", resp.StatusCode, body)
	}

	req, _ = http.NewRequest(http.MethodGet, "http://tracker/api/status", nil)
	if _, err := m.Do(req); err == nil {
		t.Error("expected queued transport error")
	}

	resp, err = m.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("drained queue: got %v, %v; want 200", resp, err)
	}

	if n := m.RequestCount(); n != 3 {
		t.Errorf("RequestCount() = %d, want 3", n)
	}
	first, firstBody := m.Request(0)
	if first.URL.Path != "/api/recording/start" || firstBody != `{}` {
		t.Errorf("Request(0) = %s %q", first.URL.Path, firstBody)
	}
	if r, _ := m.Request(9); r != nil {
		t.Error("Request out of range should be nil")
	}
}

func TestMockHTTPClient_DoFunc(t *testing.T) {
	t.Parallel()

	m := NewMockHTTPClient()
	m.DoFunc = func(req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusAccepted, Body: http.NoBody}, nil
	}
	req, _ := http.NewRequest(http.MethodGet, "http://tracker/", nil)
	resp, err := m.Do(req)
	if err != nil || resp.StatusCode != http.StatusAccepted {
		t.Errorf("DoFunc not used: %v %v", resp, err)
	}
}

func TestStandardClient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONOK(w, map[string]string{"path": r.URL.Path})
	}))
	defer srv.Close()

	var c HTTPClient = NewStandardClient(5 * time.Second)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/status", nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "/api/status") {
		t.Errorf("body = %s", body)
	}
}
