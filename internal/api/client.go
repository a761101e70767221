// Package api is a thin client for the Reboot Adventures registration API.
// Every call is a single round trip bound to the caller's context: no retries
// and no caching.
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

	"go.uber.org/zap"

	"reboot-miniapp/internal/models"
)

// ErrInvalidTicket marks a ticket lookup the server answered with success=false.
var ErrInvalidTicket = errors.New("invalid ticket")

// Error is a non-success answer from the API.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	err        error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.err }

type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.SugaredLogger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) { c.log = log }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) RegisterUser(ctx context.Context, rec models.RegistrationRecord) (*models.User, error) {
	var out envelope[models.User]
	if err := c.do(ctx, "register user", http.MethodPost, "/users", rec, &out, "Failed to register"); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var out envelope[[]models.User]
	if err := c.do(ctx, "list users", http.MethodGet, "/users", nil, &out, "Failed to fetch users"); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// GetUserByTelegramID returns nil without error when the API has no record.
func (c *Client) GetUserByTelegramID(ctx context.Context, tgID int64) (*models.User, error) {
	var out envelope[*models.User]
	path := "/users/telegram/" + strconv.FormatInt(tgID, 10)
	err := c.do(ctx, "get user", http.MethodGet, path, nil, &out, "Failed to fetch user")
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, rec models.RegistrationRecord) (*models.User, error) {
	var out envelope[models.User]
	path := "/users/" + url.PathEscape(id)
	if err := c.do(ctx, "update user", http.MethodPut, path, rec, &out, "Failed to update profile"); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) ListEvents(ctx context.Context) ([]models.Event, error) {
	var out envelope[[]models.Event]
	if err := c.do(ctx, "list events", http.MethodGet, "/events", nil, &out, "Failed to fetch events"); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) SignupForEvent(ctx context.Context, eventID, userID string) (*models.EventSignup, error) {
	var out envelope[models.EventSignup]
	path := "/events/" + url.PathEscape(eventID) + "/signup"
	body := map[string]string{"userId": userID}
	if err := c.do(ctx, "event signup", http.MethodPost, path, body, &out, "Failed to sign up"); err != nil {
		return nil, err
	}
	if out.Data.EventID == "" {
		out.Data.EventID = eventID
	}
	if out.Data.UserID == "" {
		out.Data.UserID = userID
	}
	return &out.Data, nil
}

func (c *Client) ListPublicMemories(ctx context.Context, page, limit int) (*models.MemoryPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var out models.MemoryPage
	if err := c.do(ctx, "list memories", http.MethodGet, "/memories/public?"+q.Encode(), nil, &out, "Failed to fetch gallery"); err != nil {
		return nil, err
	}
	return &out, nil
}

type ticketEnvelope struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	Data    *models.TicketVerification `json:"data"`
}

// GetTicket fetches the server's view of a ticket. A success=false answer is
// an *Error wrapping ErrInvalidTicket, whatever the HTTP status.
func (c *Client) GetTicket(ctx context.Context, reference string) (*models.TicketVerification, error) {
	const op = "get ticket"
	req, err := c.newRequest(ctx, http.MethodGet, "/ticket/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	var env ticketEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	if !env.Success || env.Data == nil {
		msg := env.Message
		if msg == "" {
			msg = "Invalid ticket"
		}
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: msg, err: ErrInvalidTicket}
	}
	return env.Data, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any, fallback string) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debugw("api request failed", "op", op, "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	c.log.Debugw("api request", "op", op, "method", method, "path", path,
		"status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(resp.Body, fallback)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

func errorMessage(r io.Reader, fallback string) string {
	var body errorBody
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&body); err != nil {
		return fallback
	}
	if body.Error != "" {
		return body.Error
	}
	if body.Message != "" {
		return body.Message
	}
	return fallback
}
