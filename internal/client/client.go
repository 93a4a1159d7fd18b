// Package client talks to a readingplan server over its JSON API. Client
// satisfies progress.RecordStore, so a progress.Engine can run against a
// remote server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bethesda/readingplan/internal/model"
	"github.com/bethesda/readingplan/internal/progress"
)

var _ progress.RecordStore = (*Client)(nil)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}

// IsForbidden reports whether err is a 403 from the server.
func IsForbidden(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusForbidden
}

type Client struct {
	mu         sync.RWMutex
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.cfg.Token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.Token
}

func (c *Client) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// send performs the request and returns the response for a 2xx status.
// The caller closes the body.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, statusError(resp)
}

func statusError(resp *http.Response) *StatusError {
	var body struct {
		Error string `json:"error"`
	}
	json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	return &StatusError{Code: resp.StatusCode, Message: body.Error}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type RegisterRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

func (c *Client) Register(ctx context.Context, reg RegisterRequest) (*model.Profile, error) {
	var p model.Profile
	if err := c.do(ctx, "POST", "/api/auth/register", reg, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Login signs in and keeps the session token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*model.User, error) {
	var out struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, "POST", "/api/auth/login", in, &out); err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out.User, nil
}

// ForgotPassword asks the server to email a reset code to email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.do(ctx, "POST", "/api/auth/forgot", map[string]string{"email": email}, nil)
}

// ResetPassword sets a new password using an emailed code. Existing
// sessions, including this client's, stop working.
func (c *Client) ResetPassword(ctx context.Context, email, code, password, confirm string) error {
	in := map[string]string{
		"email":            email,
		"code":             code,
		"password":         password,
		"confirm_password": confirm,
	}
	if err := c.do(ctx, "POST", "/api/auth/reset", in, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, "POST", "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// Me is the signed-in caller as the server sees them.
type Me struct {
	User       model.User     `json:"user"`
	Profile    *model.Profile `json:"profile"`
	Roles      []string       `json:"roles"`
	IsAdmin    bool           `json:"is_admin"`
	Approved   bool           `json:"approved"`
	NeedsPhone bool           `json:"needs_phone"`
}

func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, "GET", "/api/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *Client) UpdatePhone(ctx context.Context, phone string) (*model.Profile, error) {
	var p model.Profile
	if err := c.do(ctx, "PUT", "/api/me/phone", map[string]string{"phone": phone}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FetchProgress returns the signed-in user's completed days. The server
// scopes records to the session, so userID is not sent.
func (c *Client) FetchProgress(ctx context.Context, userID string) ([]int, error) {
	var out struct {
		Days []int `json:"days"`
	}
	if err := c.do(ctx, "GET", "/api/records/progress", nil, &out); err != nil {
		return nil, err
	}
	if out.Days == nil {
		out.Days = []int{}
	}
	return out.Days, nil
}

func (c *Client) UpsertProgress(ctx context.Context, userID string, day int, completedAt time.Time) error {
	in := map[string]time.Time{"completed_at": completedAt.UTC()}
	return c.do(ctx, "PUT", "/api/records/progress/"+strconv.Itoa(day), in, nil)
}

func (c *Client) DeleteProgress(ctx context.Context, userID string, day int) error {
	return c.do(ctx, "DELETE", "/api/records/progress/"+strconv.Itoa(day), nil, nil)
}

// ProgressResponse is the server engine's reply to a progress operation.
type ProgressResponse struct {
	Outcome      progress.Outcome       `json:"outcome"`
	Notification *progress.Notification `json:"notification,omitempty"`
	Stats        progress.Stats         `json:"stats"`
}

// Mark marks day complete through the server's engine. A rolled back or
// failed write is reported in Outcome, not as an error.
func (c *Client) Mark(ctx context.Context, day int) (*ProgressResponse, error) {
	return c.progressCall(ctx, "PUT", "/api/progress/"+strconv.Itoa(day))
}

// Unmark marks day incomplete through the server's engine.
func (c *Client) Unmark(ctx context.Context, day int) (*ProgressResponse, error) {
	return c.progressCall(ctx, "DELETE", "/api/progress/"+strconv.Itoa(day))
}

// Refresh reloads the server engine from stored records.
func (c *Client) Refresh(ctx context.Context) (*ProgressResponse, error) {
	return c.progressCall(ctx, "POST", "/api/progress/refresh")
}

func (c *Client) Stats(ctx context.Context) (*progress.Stats, error) {
	var st progress.Stats
	if err := c.do(ctx, "GET", "/api/progress", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) progressCall(ctx context.Context, method, path string) (*ProgressResponse, error) {
	req, err := c.newRequest(ctx, method, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, statusError(resp)
	}
	var out ProgressResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// FetchProfiles lists profiles, optionally filtered by status. Admin only.
func (c *Client) FetchProfiles(ctx context.Context, status model.ApprovalStatus) ([]model.Profile, error) {
	path := "/api/admin/profiles"
	if status != "" {
		path += "?" + url.Values{"status": {string(status)}}.Encode()
	}
	var out []model.Profile
	if err := c.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateApprovalStatus sets a member's approval status. Admin only.
func (c *Client) UpdateApprovalStatus(ctx context.Context, userID string, status model.ApprovalStatus) (*model.Profile, error) {
	var p model.Profile
	path := "/api/admin/profiles/" + url.PathEscape(userID) + "/status"
	if err := c.do(ctx, "PUT", path, map[string]model.ApprovalStatus{"status": status}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RemoveUser deletes a member's progress and rejects them. Admin only.
func (c *Client) RemoveUser(ctx context.Context, userID string) error {
	return c.do(ctx, "DELETE", "/api/admin/users/"+url.PathEscape(userID), nil, nil)
}

// AdminProgressSummary returns the server-side per-member aggregation.
func (c *Client) AdminProgressSummary(ctx context.Context) ([]model.ProgressSummary, error) {
	var out []model.ProgressSummary
	if err := c.do(ctx, "GET", "/api/admin/summary", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Export streams the admin export in format ("csv" or "xlsx") to w and
// returns the server's suggested file name.
func (c *Client) Export(ctx context.Context, format string, w io.Writer) (string, error) {
	req, err := c.newRequest(ctx, "GET", "/api/admin/export?"+url.Values{"format": {format}}.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.send(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("read export: %w", err)
	}

	filename := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	return filename, nil
}

// Identity asks the server who the session belongs to.
func (c *Client) Identity(ctx context.Context) (progress.Identity, error) {
	me, err := c.Me(ctx)
	if err != nil {
		return progress.Identity{}, err
	}
	return progress.Identity{UserID: me.User.ID, Approved: me.Approved}, nil
}

// StaticAuth is a fixed progress.AuthProvider, typically filled from
// Client.Identity after Login.
type StaticAuth progress.Identity

func (a StaticAuth) CurrentUser(context.Context) (progress.Identity, bool) {
	if a.UserID == "" {
		return progress.Identity{}, false
	}
	return progress.Identity(a), true
}
