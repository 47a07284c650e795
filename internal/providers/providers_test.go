package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"telehealth/internal/apperr"
	"telehealth/internal/config"
)

func TestDailyCreateRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rooms" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer daily-key" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "{}" {
			t.Errorf("body = %q", body)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"name":"abc","url":"https://x.daily.co/abc"}`))
	}))
	defer srv.Close()

	d := NewDailyClient(config.DailyConfig{APIKey: "daily-key", BaseURL: srv.URL, Timeout: time.Second})
	resp, err := d.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if resp.StatusCode != http.StatusOK || resp.ContentType != "application/json; charset=utf-8" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if string(resp.Body) != `{"name":"abc","url":"https://x.daily.co/abc"}` {
		t.Fatalf("body not passed through: %s", resp.Body)
	}
}

func TestDailyMeetingToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meeting-tokens" {
			t.Errorf("path = %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		_, _ = w.Write([]byte(`{"token":"t"}`))
	}))
	defer srv.Close()
	d := NewDailyClient(config.DailyConfig{APIKey: "k", BaseURL: srv.URL, Timeout: time.Second})

	payload := `{"properties":{"room_name":"abc"}}`
	if _, err := d.MeetingToken(context.Background(), []byte(payload)); err != nil {
		t.Fatalf("MeetingToken: %v", err)
	}
	if got != payload {
		t.Fatalf("forwarded %q, want %q", got, payload)
	}

	if _, err := d.MeetingToken(context.Background(), nil); err != nil || got != "{}" {
		t.Fatalf("empty payload: forwarded %q, err %v", got, err)
	}

	for _, bad := range []string{"[1,2]", "not json", `"str"`, "null"} {
		if _, err := d.MeetingToken(context.Background(), []byte(bad)); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("%s: expected validation error, got %v", bad, err)
		}
	}
}

func TestUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"authentication-error"}`))
	}))
	defer srv.Close()
	d := NewDailyClient(config.DailyConfig{APIKey: "bad", BaseURL: srv.URL, Timeout: time.Second})

	_, err := d.CreateRoom(context.Background())
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind != apperr.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if e.UpstreamStatus != http.StatusUnauthorized || !strings.Contains(string(e.UpstreamBody), "authentication-error") {
		t.Fatalf("provider status/body not kept: %+v", e)
	}
	if apperr.HTTPStatus(err) != http.StatusBadGateway {
		t.Fatalf("status = %d", apperr.HTTPStatus(err))
	}
}

func TestTransportFailureAndTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	slow := NewDailyClient(config.DailyConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	if _, err := slow.CreateRoom(context.Background()); !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("timeout: got %v", err)
	}

	down := NewDailyClient(config.DailyConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	if _, err := down.CreateRoom(context.Background()); !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("unreachable: got %v", err)
	}
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer openai-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if m := r.FormValue("model"); m != "whisper-1" {
			t.Errorf("model = %q", m)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "visit.webm" || string(data) != "RIFF-audio" {
			t.Errorf("got file %q with %q", hdr.Filename, data)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "audio/webm" {
			t.Errorf("part content type = %q", ct)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"hello"}`))
	}))
	defer srv.Close()

	c := NewTranscriptionClient(config.TranscriptionConfig{
		APIKey: "openai-key", BaseURL: srv.URL, Model: "whisper-1", Timeout: time.Second,
	})
	resp, err := c.Transcribe(context.Background(), "visit.webm", "audio/webm", strings.NewReader("RIFF-audio"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if string(resp.Body) != `{"text":"hello"}` {
		t.Fatalf("body = %s", resp.Body)
	}
}

func TestOversizedResponseRejected(t *testing.T) {
	big := strings.Repeat("a", maxResponseBytes+10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/meeting-tokens" {
			w.WriteHeader(http.StatusBadRequest)
		}
		_, _ = w.Write([]byte(big))
	}))
	defer srv.Close()
	d := NewDailyClient(config.DailyConfig{APIKey: "k", BaseURL: srv.URL, Timeout: 5 * time.Second})

	resp, err := d.CreateRoom(context.Background())
	if resp != nil || !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error for oversized body, got %v", err)
	}
	var e *apperr.Error
	if errors.As(err, &e) && e.UpstreamStatus != 0 {
		t.Fatalf("oversized success reported as provider status %d", e.UpstreamStatus)
	}

	_, err = d.MeetingToken(context.Background(), nil)
	if !errors.As(err, &e) || e.UpstreamStatus != http.StatusBadRequest {
		t.Fatalf("expected provider 400, got %v", err)
	}
	if len(e.UpstreamBody) != maxResponseBytes {
		t.Fatalf("error body len = %d, want %d", len(e.UpstreamBody), maxResponseBytes)
	}
}

func TestResponseAtLimitAccepted(t *testing.T) {
	exact := strings.Repeat("b", maxResponseBytes)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(exact))
	}))
	defer srv.Close()
	d := NewDailyClient(config.DailyConfig{APIKey: "k", BaseURL: srv.URL, Timeout: 5 * time.Second})

	resp, err := d.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if len(resp.Body) != maxResponseBytes {
		t.Fatalf("body len = %d", len(resp.Body))
	}
}
