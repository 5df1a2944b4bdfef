package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendMessageRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/functions/sendMessage" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("X-User-Id") != "viewer-1" {
			t.Errorf("missing viewer header")
		}
		var in struct {
			ToUserID string `json:"to_user_id"`
			Body     string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatal(err)
		}
		if in.ToUserID != "user-42" || in.Body != "hello" {
			t.Errorf("request = %+v", in)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": Message{ID: "srv-99", ChatID: "chat-1", SenderID: "viewer-1",
				Body: "hello", CreatedAt: 1000},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "viewer-1")
	msg, err := c.SendMessage(context.Background(), "user-42", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "srv-99" || msg.ChatID != "chat-1" {
		t.Errorf("got %+v", msg)
	}
}

func TestErrorCategorization(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))
		c := NewHTTPClient(srv.URL, "key", "viewer-1")
		_, err := c.FetchChats(context.Background())
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		if IsTransient(err) != tt.transient {
			t.Errorf("status %d: IsTransient = %v, want %v", tt.status, IsTransient(err), tt.transient)
		}
	}
}

func TestConnectionRefusedIsTransient(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", "key", "viewer-1")
	_, err := c.FetchMatches(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTransient(err) {
		t.Errorf("IsTransient = false for connection error")
	}
}
