// Package mailer sends templated email through the EmailJS REST API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ato_site/internal/metrics"
)

// SendError is a non-200 answer from EmailJS.
type SendError struct {
	Status int
	Text   string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("emailjs send: status %d: %s", e.Status, e.Text)
}

// Client sends one template through one EmailJS service.
type Client struct {
	baseURL    string
	serviceID  string
	templateID string
	publicKey  string
	privateKey string
	http       *http.Client
}

// New returns an EmailJS client. privateKey may be empty when the account does
// not require it for API calls.
func New(baseURL, serviceID, templateID, publicKey, privateKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceID:  serviceID,
		templateID: templateID,
		publicKey:  publicKey,
		privateKey: privateKey,
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// Send renders the template with params and dispatches it.
func (c *Client) Send(ctx context.Context, params map[string]string) (err error) {
	defer func() { metrics.Observe("emailjs.send", err) }()

	payload, err := json.Marshal(sendRequest{
		ServiceID:      c.serviceID,
		TemplateID:     c.templateID,
		UserID:         c.publicKey,
		AccessToken:    c.privateKey,
		TemplateParams: params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1.0/email/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("emailjs send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return &SendError{Status: resp.StatusCode, Text: strings.TrimSpace(string(body))}
	}
	return nil
}
