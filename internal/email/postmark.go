// Package email sends account notices through Postmark.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/bethesda/readingplan/internal/model"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL points the client at another Postmark-compatible endpoint.
func WithAPIURL(u string) Option {
	return func(cl *Client) {
		cl.apiURL = u
	}
}

// NewClient builds a Postmark client. baseURL is the site address linked
// from messages.
func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		apiURL:      defaultAPIURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendWelcome tells a new member their registration is waiting for review.
func (c *Client) SendWelcome(ctx context.Context, toEmail, fullName string) error {
	text := fmt.Sprintf("Hi %s,\n\nThanks for signing up for the reading plan. An administrator will review your account shortly. We'll email you once it has been approved.", fullName)
	return c.send(ctx, toEmail, "Welcome to the reading plan", text)
}

// SendStatusChange tells a member their account was approved or rejected.
// Other statuses are not announced.
func (c *Client) SendStatusChange(ctx context.Context, toEmail, fullName string, status model.ApprovalStatus) error {
	var subject, text string
	switch status {
	case model.StatusApproved:
		subject = "Your reading plan account is approved"
		text = fmt.Sprintf("Hi %s,\n\nYour account has been approved. You can start tracking your daily readings at %s.", fullName, c.baseURL)
	case model.StatusRejected:
		subject = "Your reading plan account"
		text = fmt.Sprintf("Hi %s,\n\nYour account was not approved. Contact an administrator if you think this is a mistake.", fullName)
	default:
		return nil
	}
	return c.send(ctx, toEmail, subject, text)
}

// SendPasswordReset emails the code that unlocks a password change.
func (c *Client) SendPasswordReset(ctx context.Context, toEmail, fullName, code string) error {
	text := fmt.Sprintf("Hi %s,\n\nYour password reset code is %s. It expires in 15 minutes. Enter it at %s/reset-password to choose a new password.\n\nIf you did not ask to reset your password you can ignore this email.", fullName, code, c.baseURL)
	return c.send(ctx, toEmail, "Reset your reading plan password", text)
}

func (c *Client) send(ctx context.Context, toEmail, subject, text string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: "<p>" + strings.ReplaceAll(html.EscapeString(text), "\n\n", "</p><p>") + "</p>",
		TextBody: text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
