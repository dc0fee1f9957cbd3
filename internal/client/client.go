// Package client calls the check-in API on behalf of a kiosk or an admin.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkin/internal/attendance"
	"checkin/internal/auth"
)

// ErrUnauthorized is returned when the API rejects the bearer token.
var ErrUnauthorized = errors.New("client: unauthorized")

// APIError is a non-2xx response. It unwraps to the matching attendance
// error so callers can use errors.Is.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return attendance.ErrInvalidInput
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return attendance.ErrPersonNotFound
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return attendance.ErrSourceUnavailable
	}
	return nil
}

// Client calls the check-in API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New creates a client with a request timeout.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// People lists the active people of a category.
func (c *Client) People(ctx context.Context, category attendance.Category) ([]attendance.Person, error) {
	var out struct {
		People []attendance.Person `json:"people"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/kiosk/"+string(category)+"/people", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.People, nil
}

// Status looks up a person's current state. Any failure yields Unknown.
func (c *Client) Status(ctx context.Context, category attendance.Category, personID, tz string) (attendance.State, error) {
	unknown := attendance.State{Kind: attendance.Unknown}
	if strings.TrimSpace(personID) == "" {
		return unknown, attendance.ErrEmptySelection
	}
	q := url.Values{}
	if tz != "" {
		q.Set("tz", tz)
	}
	var out struct {
		Status attendance.State `json:"status"`
	}
	path := "/v1/kiosk/" + string(category) + "/people/" + url.PathEscape(personID) + "/status"
	if err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return unknown, err
		}
		return unknown, fmt.Errorf("%w: %v", attendance.ErrSourceUnavailable, err)
	}
	return out.Status, nil
}

// Record submits an entry or exit and returns the stored event and the
// confirmation view to show.
func (c *Client) Record(ctx context.Context, category attendance.Category, personID string, action attendance.Action) (attendance.Event, attendance.Confirmation, error) {
	if strings.TrimSpace(personID) == "" {
		return attendance.Event{}, attendance.Confirmation{}, attendance.ErrEmptySelection
	}
	body := map[string]string{"person_id": personID, "action": string(action)}
	var out struct {
		Event        attendance.Event `json:"event"`
		Confirmation confirmation     `json:"confirmation"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/kiosk/"+string(category)+"/attendance", nil, body, &out); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			err = fmt.Errorf("%w: %v", attendance.ErrSourceUnavailable, err)
		}
		return attendance.Event{}, attendance.Confirmation{}, err
	}
	return out.Event, out.Confirmation.toDomain(), nil
}

// Confirmation fetches the confirmation view for an action.
func (c *Client) Confirmation(ctx context.Context, action attendance.Action) (attendance.Confirmation, error) {
	var out confirmation
	if err := c.do(ctx, http.MethodGet, "/v1/confirmation/"+string(action), nil, nil, &out); err != nil {
		return attendance.Confirmation{}, err
	}
	return out.toDomain(), nil
}

type confirmation struct {
	Action             attendance.Action `json:"action"`
	Path               string            `json:"path"`
	ReturnTo           string            `json:"return_to"`
	ReturnAfterSeconds float64           `json:"return_after_seconds"`
}

func (c confirmation) toDomain() attendance.Confirmation {
	return attendance.Confirmation{
		Action:      c.Action,
		Path:        c.Path,
		ReturnTo:    c.ReturnTo,
		ReturnAfter: time.Duration(c.ReturnAfterSeconds * float64(time.Second)),
	}
}

// LoginResult is a successful admin login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
	Email       string `json:"email"`
}

// Login exchanges admin credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out LoginResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", nil, body, &out); err != nil {
		return LoginResult{}, err
	}
	return out, nil
}

// Session reports whether the client's token is an active admin session.
func (c *Client) Session(ctx context.Context) (auth.Session, error) {
	var out auth.Session
	if err := c.do(ctx, http.MethodGet, "/v1/auth/session", nil, nil, &out); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return auth.Session{}, nil
		}
		return auth.Session{}, err
	}
	return out, nil
}

// LogQuery selects the admin log view.
type LogQuery struct {
	View   attendance.View
	Name   string
	Action attendance.ActionFilter
	TZ     string
}

// Logs fetches the admin log of a category.
func (c *Client) Logs(ctx context.Context, category attendance.Category, lq LogQuery) (attendance.Log, error) {
	q := url.Values{}
	if lq.View != "" {
		q.Set("view", string(lq.View))
	}
	if lq.Name != "" {
		q.Set("name", lq.Name)
	}
	if lq.Action != "" {
		q.Set("action", string(lq.Action))
	}
	if lq.TZ != "" {
		q.Set("tz", lq.TZ)
	}
	var out attendance.Log
	if err := c.do(ctx, http.MethodGet, "/v1/admin/"+string(category)+"/logs", q, nil, &out); err != nil {
		return attendance.Log{}, err
	}
	return out, nil
}

// AddPerson adds a person to a category's directory.
func (c *Client) AddPerson(ctx context.Context, category attendance.Category, name string) (attendance.Person, error) {
	var out attendance.Person
	if err := c.do(ctx, http.MethodPost, "/v1/admin/"+string(category)+"/people", nil, map[string]string{"name": name}, &out); err != nil {
		return attendance.Person{}, err
	}
	return out, nil
}

// DeactivatePerson hides a person from the directory.
func (c *Client) DeactivatePerson(ctx context.Context, category attendance.Category, id string) error {
	return c.do(ctx, http.MethodPost, "/v1/admin/"+string(category)+"/people/"+url.PathEscape(id)+"/deactivate", nil, nil, nil)
}

// Export asks the API to upload the session view and returns the object key.
func (c *Client) Export(ctx context.Context, category attendance.Category, tz string) (string, error) {
	q := url.Values{}
	if tz != "" {
		q.Set("tz", tz)
	}
	var out struct {
		Key string `json:"key"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/admin/"+string(category)+"/export", q, nil, &out); err != nil {
		return "", err
	}
	return out.Key, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
