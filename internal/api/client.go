package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MPhong03/tdtu-admission-client/internal/model/chat"
)

// StatusSuccess is the envelope code the admission API uses for success.
const StatusSuccess = 1

// Error is an application-level failure: the server answered but signalled
// a non-success code. Transport failures stay plain wrapped errors.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api error (code %d)", e.Code)
}

// AsAppError unwraps err into an application-level API error, if it is one.
func AsAppError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// envelope wraps every API response.
type envelope struct {
	Code    int             `json:"Code"`
	Message string          `json:"Message"`
	Data    json.RawMessage `json:"Data"`
}

// Client talks to the admission chatbot HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Code != StatusSuccess {
		return &Error{Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	return nil
}

// History fetches one newest-first page of conversation history.
func (c *Client) History(ctx context.Context, chatID string, page, size int, visitorID string) (*chat.HistoryPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	if visitorID != "" {
		q.Set("visitorId", visitorID)
	}

	var out chat.HistoryPage
	if err := c.do(ctx, http.MethodGet, "/chatbot/history/"+url.PathEscape(chatID), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendResult is the reply to a question: the persisted history id, the
// answer text, and possibly a freshly issued chat or visitor identity.
type SendResult struct {
	HistoryID string `json:"historyId"`
	Answer    string `json:"answer"`
	ChatID    string `json:"chatId"`
	VisitorID string `json:"visitorId"`
}

type sendRequest struct {
	Question  string `json:"question"`
	ChatID    string `json:"chatId,omitempty"`
	VisitorID string `json:"visitorId,omitempty"`
}

// SendQuestion submits a question. An empty chatID asks the server to
// create the conversation lazily; the result then carries the new id.
func (c *Client) SendQuestion(ctx context.Context, question, chatID, visitorID string) (*SendResult, error) {
	req := sendRequest{Question: question, ChatID: chatID, VisitorID: visitorID}

	var out SendResult
	if err := c.do(ctx, http.MethodPost, "/chatbot/chat", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type createChatRequest struct {
	Name      string `json:"name"`
	VisitorID string `json:"visitorId,omitempty"`
}

// CreateChat provisions a new conversation.
func (c *Client) CreateChat(ctx context.Context, name, visitorID string) (*chat.Summary, error) {
	req := createChatRequest{Name: name, VisitorID: visitorID}

	var out chat.Summary
	if err := c.do(ctx, http.MethodPost, "/chats", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
