package lessons

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	appLog "tutorcal/internal/log"
	"tutorcal/internal/model"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 5 * time.Second

	schedulesPath = "/lesson-schedules/"

	// maxErrorBody caps how much of a failed response body is kept.
	maxErrorBody = 4 << 10
)

var (
	// ErrUnauthorized is returned for 401 responses.
	ErrUnauthorized = errors.New("lessons: authentication failed")
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = errors.New("lessons: not found")
)

// StatusError is any other non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lessons: %s %s: unexpected status %d", e.Method, e.Path, e.Code)
}

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. "http://localhost:8000".
	BaseURL string

	// Token is sent as a bearer credential on every request when non-empty.
	Token string

	// Timeout bounds each HTTP exchange. Zero means DefaultTimeout.
	Timeout time.Duration

	// Location is used for timestamps without an explicit zone and as the
	// display location of decoded events. Nil means time.Local.
	Location *time.Location

	// OnUnauthorized is called after a 401 response, typically to send the
	// user to the login flow.
	OnUnauthorized func()

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to the lesson-schedule REST API.
type Client struct {
	baseURL        string
	token          string
	loc            *time.Location
	client         *http.Client
	onUnauthorized func()
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:        base,
		token:          opts.Token,
		loc:            loc,
		client:         hc,
		onUnauthorized: opts.OnUnauthorized,
	}
}

// List fetches every lesson schedule.
func (c *Client) List(ctx context.Context) ([]model.CalendarEvent, error) {
	data, err := c.do(ctx, http.MethodGet, schedulesPath, nil)
	if err != nil {
		return nil, err
	}
	events, err := decodeList(data, c.loc)
	if err != nil {
		appLog.Error("lessons list decode failed", err)
		return nil, err
	}
	appLog.Debug("lessons list", "count", len(events))
	return events, nil
}

// Get fetches a single lesson schedule.
func (c *Client) Get(ctx context.Context, id int64) (model.CalendarEvent, error) {
	data, err := c.do(ctx, http.MethodGet, itemPath(id), nil)
	if err != nil {
		return model.CalendarEvent{}, err
	}
	return decodeOne(data, c.loc)
}

// Create stores a new lesson schedule and returns the created record.
func (c *Client) Create(ctx context.Context, in model.EventInput) (model.CalendarEvent, error) {
	data, err := c.do(ctx, http.MethodPost, schedulesPath, encodeInput(in))
	if err != nil {
		return model.CalendarEvent{}, err
	}
	return decodeOne(data, c.loc)
}

// Update replaces lesson schedule id and returns the updated record.
func (c *Client) Update(ctx context.Context, id int64, in model.EventInput) (model.CalendarEvent, error) {
	data, err := c.do(ctx, http.MethodPut, itemPath(id), encodeInput(in))
	if err != nil {
		return model.CalendarEvent{}, err
	}
	return decodeOne(data, c.loc)
}

// Delete removes lesson schedule id.
func (c *Client) Delete(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, itemPath(id), nil)
	return err
}

func itemPath(id int64) string {
	return schedulesPath + strconv.FormatInt(id, 10) + "/"
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("lessons: encode %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("lessons: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		appLog.Error("lessons request failed", err, "method", method, "path", path)
		return nil, fmt.Errorf("lessons: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	appLog.Debug("lessons request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(started))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("lessons: read %s %s: %w", method, path, err)
		}
		return data, nil

	case resp.StatusCode == http.StatusUnauthorized:
		appLog.Error("lessons authentication error; token expired or invalid", ErrUnauthorized, "method", method, "path", path)
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return nil, ErrUnauthorized

	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, method, path)

	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(snippet)}
	}
}
