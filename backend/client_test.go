package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"nexus/clock"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, Options{Backoff: time.Millisecond}), srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestGhostChat(t *testing.T) {
	var got map[string]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/ghost-chat" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		writeJSON(w, 200, map[string]any{
			"success": true,
			"data": map[string]any{
				"reply":     "I am still here...",
				"timestamp": "2024-10-31T00:00:00",
				"persona":   map[string]any{"id": "weeping_bride", "gender": "female", "voice_settings": map[string]any{"pitch": 1.3}},
			},
		})
	})

	reply, err := c.GhostChat(context.Background(), "hello?", "weeping_bride")
	if err != nil {
		t.Fatal(err)
	}
	if got["message"] != "hello?" || got["persona_id"] != "weeping_bride" {
		t.Errorf("request body = %v", got)
	}
	if reply.Reply != "I am still here..." {
		t.Errorf("reply = %q", reply.Reply)
	}
	if reply.Persona == nil || reply.Persona.Gender != "female" || reply.Persona.VoiceSettings.Pitch != 1.3 {
		t.Errorf("persona = %+v", reply.Persona)
	}
}

func TestGhostChatWithoutPersona(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["persona_id"]; ok {
			t.Error("persona_id sent without a persona")
		}
		writeJSON(w, 200, map[string]any{"data": map[string]any{"reply": "boo"}})
	})
	if _, err := c.GhostChat(context.Background(), "hi", ""); err != nil {
		t.Fatal(err)
	}
}

func TestResponseWithoutData(t *testing.T) {
	for _, body := range []map[string]any{
		{"reply": "bare"},
		{"success": true, "data": nil},
	} {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 200, body)
		})
		_, err := c.GhostChat(context.Background(), "hi", "")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != CodeParse {
			t.Errorf("body %v: err = %v, want PARSE_ERROR", body, err)
		}
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, 404, map[string]any{
			"success": false,
			"error":   map[string]any{"code": "LOCATION_NOT_FOUND", "message": "Location not found", "details": "No location found with ID: 99"},
		})
	})

	_, err := c.GhostStory(context.Background(), "99")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != "LOCATION_NOT_FOUND" || apiErr.Status != 404 || apiErr.Details != "No location found with ID: 99" {
		t.Errorf("error = %+v", apiErr)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, 500, map[string]any{"error": map[string]any{"code": "SERVER_ERROR", "message": "boom"}})
			return
		}
		writeJSON(w, 200, map[string]any{"data": map[string]any{"emotion": "sad", "haunted_reply": "We weep together"}})
	})

	got, err := c.Journal(context.Background(), "I lost my keys")
	if err != nil {
		t.Fatal(err)
	}
	if got.Emotion != "sad" {
		t.Errorf("emotion = %q", got.Emotion)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(502)
		io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := c.Reanimate(context.Background(), "https://example.com")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeParse {
		t.Fatalf("err = %v, want PARSE_ERROR", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 1 + 2 retries", n)
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, Options{Backoff: time.Millisecond, Retries: -1})
	_, err := c.Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeNetwork || apiErr.Status != 0 {
		t.Fatalf("err = %v, want NETWORK_ERROR", err)
	}
}

func TestBackoffSchedule(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, 503, map[string]any{"error": map[string]any{"message": "busy"}})
	}))
	defer srv.Close()

	clk := clock.NewFake()
	c := New(srv.URL, Options{Clock: clk})
	errc := make(chan error, 1)
	go func() {
		_, err := c.Stitch(context.Background(), "weather", "jokes")
		errc <- err
	}()

	clk.BlockUntil(1)
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls before first backoff = %d", n)
	}
	clk.Advance(999 * time.Millisecond)
	select {
	case <-errc:
		t.Fatal("returned before backoff elapsed")
	case <-time.After(20 * time.Millisecond):
	}
	clk.Advance(time.Millisecond)
	clk.BlockUntil(1)
	if n := calls.Load(); n != 2 {
		t.Fatalf("calls after 1s = %d", n)
	}
	clk.Advance(2 * time.Second)

	err := <-errc
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeUnknown || apiErr.Status != 503 {
		t.Fatalf("err = %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d", n)
	}
}

func TestCancelDuringBackoff(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	})
	c.backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := c.ImageStyles(ctx); err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("backoff ignored cancellation")
	}
}

func TestCachedEndpoints(t *testing.T) {
	var calls atomic.Int32
	clk := clock.NewFake()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, 200, map[string]any{"data": map[string]any{
			"locations": []map[string]any{{"id": "1", "name": "The Whispering Woods", "lat": 40.7128, "lng": -74.006}},
		}})
	}))
	defer srv.Close()
	c := New(srv.URL, Options{Clock: clk})

	for range 3 {
		locs, err := c.Locations(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(locs) != 1 || locs[0].Name != "The Whispering Woods" {
			t.Fatalf("locations = %+v", locs)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want cached", n)
	}

	clk.Advance(DefaultTTL + time.Second)
	c.Locations(context.Background())
	if n := calls.Load(); n != 2 {
		t.Fatalf("calls after TTL = %d", n)
	}
}
