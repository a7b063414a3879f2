package api

import (
	"Arcana/internal/model"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUnauthorized = errors.New("credential rejected by persistence API")
)

const (
	// Timeouts
	defaultRequestTimeout = 15 * time.Second
	uploadTimeout         = 60 * time.Second // file/voice uploads get a wider but still bounded window
)

// PersistenceError wraps a failed REST call with enough context to
// surface a human-readable message.
type PersistenceError struct {
	Op     string
	Status int
	Err    error
}

func (e *PersistenceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s failed with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// UploadError marks a failed file/voice attachment persistence call.
type UploadError struct {
	Op  string
	Err error
}

func (e *UploadError) Error() string { return fmt.Sprintf("%s upload failed: %v", e.Op, e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// Client talks to the session/message persistence API. Every call
// carries the bearer credential; a 401-class response maps to
// ErrUnauthorized so the caller can force the transport down.
type Client struct {
	baseURL    string
	credential string
	httpClient *http.Client
	logger     *zap.Logger
}

// OutgoingMessage is the request body for persisting a text message.
type OutgoingMessage struct {
	ClientID string `json:"clientId"`
	Type     string `json:"type"`
	Content  string `json:"content"`
}

// CreateSessionRequest is the request body for creating a session.
type CreateSessionRequest struct {
	ParticipantIDs []string `json:"participantIds"`
	Type           string   `json:"type"`
	Title          string   `json:"title"`
}

// ReadBoundary records how far the local user has read in a session.
type ReadBoundary struct {
	UpTo time.Time `json:"upTo"`
}

func NewClient(baseURL, credential string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		credential: credential,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     logger,
	}
}

// ListSessions returns the session directory with unread counts.
func (c *Client) ListSessions(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	if err := c.doJSON(ctx, http.MethodGet, "/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetMessages returns the ordered message history of a session.
func (c *Client) GetMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	var messages []model.Message
	path := fmt.Sprintf("/sessions/%s/messages", sessionID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// PostMessage persists a text message and returns the server-assigned
// message envelope.
func (c *Client) PostMessage(ctx context.Context, sessionID string, out OutgoingMessage) (*model.Message, error) {
	var msg model.Message
	path := fmt.Sprintf("/sessions/%s/messages", sessionID)
	if err := c.doJSON(ctx, http.MethodPost, path, out, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead records the read boundary for a session.
func (c *Client) MarkRead(ctx context.Context, sessionID string, upTo time.Time) error {
	path := fmt.Sprintf("/sessions/%s/read", sessionID)
	return c.doJSON(ctx, http.MethodPut, path, ReadBoundary{UpTo: upTo}, nil)
}

// CreateSession persists a new session and returns it.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*model.Session, error) {
	var session model.Session
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// UploadFile persists a file attachment and returns its message envelope.
func (c *Client) UploadFile(ctx context.Context, sessionID, clientID, filename string, data io.Reader) (*model.Message, error) {
	return c.upload(ctx, fmt.Sprintf("/sessions/%s/upload", sessionID), "file", clientID, filename, data)
}

// UploadVoice persists a voice recording and returns its message
// envelope. Voice messages enter the moderation queue server-side.
func (c *Client) UploadVoice(ctx context.Context, sessionID, clientID, filename string, data io.Reader) (*model.Message, error) {
	return c.upload(ctx, fmt.Sprintf("/sessions/%s/voice", sessionID), "voice", clientID, filename, data)
}

func (c *Client) upload(ctx context.Context, path, op, clientID, filename string, data io.Reader) (*model.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("clientId", clientID); err != nil {
		return nil, &UploadError{Op: op, Err: err}
	}
	part, err := writer.CreateFormFile("attachment", filename)
	if err != nil {
		return nil, &UploadError{Op: op, Err: err}
	}
	if _, err := io.Copy(part, data); err != nil {
		return nil, &UploadError{Op: op, Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &UploadError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, &UploadError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UploadError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := c.checkStatus(op, resp); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, err
		}
		return nil, &UploadError{Op: op, Err: err}
	}

	var msg model.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, &UploadError{Op: op, Err: err}
	}
	return &msg, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	op := method + " " + path

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &PersistenceError{Op: op, Err: err}
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.credential)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("persistence call failed", zap.String("op", op), zap.Error(err))
		return &PersistenceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := c.checkStatus(op, resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &PersistenceError{Op: op, Err: err}
		}
	}
	return nil
}

func (c *Client) checkStatus(op string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.Error("persistence call unauthorized", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: %s", ErrUnauthorized, op)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Error("persistence call failed", zap.String("op", op), zap.Int("status", resp.StatusCode))
		return &PersistenceError{Op: op, Status: resp.StatusCode}
	}
	return nil
}
