package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClient calls the backend's named remote functions over JSON HTTP.
type HTTPClient struct {
	baseURL string
	apiKey  string
	userID  string
	httpc   *http.Client
}

// NewHTTPClient creates a client for the given backend. userID identifies
// the viewer; the backend scopes every call to it.
func NewHTTPClient(baseURL, apiKey, userID string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		userID:  userID,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) call(ctx context.Context, fn string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &Error{Kind: KindInvalid, Op: fn, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/functions/"+fn, bytes.NewReader(body))
	if err != nil {
		return &Error{Kind: KindInvalid, Op: fn, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("X-User-Id", c.userID)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &Error{Kind: KindTransient, Op: fn, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{Kind: KindAuth, Op: fn, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 500:
		return &Error{Kind: KindTransient, Op: fn, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return &Error{Kind: KindInvalid, Op: fn, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindTransient, Op: fn, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// FetchMatches returns every match the viewer is party to.
func (c *HTTPClient) FetchMatches(ctx context.Context) ([]Match, error) {
	var out struct {
		Matches []Match `json:"matches"`
	}
	if err := c.call(ctx, "getMatches", struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

// FetchChats returns every chat the viewer is party to.
func (c *HTTPClient) FetchChats(ctx context.Context) ([]Chat, error) {
	var out struct {
		Chats []Chat `json:"chats"`
	}
	if err := c.call(ctx, "getChats", struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Chats, nil
}

// FetchMessages returns a page of messages for a chat.
func (c *HTTPClient) FetchMessages(ctx context.Context, chatID string, page Page) ([]Message, error) {
	in := struct {
		ChatID string `json:"chat_id"`
		Page
	}{ChatID: chatID, Page: page}
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.call(ctx, "getMessages", in, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SendMessage delivers a message and returns the server-confirmed record.
func (c *HTTPClient) SendMessage(ctx context.Context, toUserID, body string) (*Message, error) {
	in := struct {
		ToUserID string `json:"to_user_id"`
		Body     string `json:"body"`
	}{ToUserID: toUserID, Body: body}
	var out struct {
		Message Message `json:"message"`
	}
	if err := c.call(ctx, "sendMessage", in, &out); err != nil {
		return nil, err
	}
	return &out.Message, nil
}

// MarkMessagesRead clears the viewer's unread counter for a chat.
func (c *HTTPClient) MarkMessagesRead(ctx context.Context, chatID string) error {
	in := struct {
		ChatID string `json:"chat_id"`
	}{ChatID: chatID}
	return c.call(ctx, "markMessagesRead", in, nil)
}
