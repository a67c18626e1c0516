// Package sheets mirrors records to a spreadsheet web-app endpoint.
package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mandoub-backend/internal/logger"
)

// Actions understood by the spreadsheet endpoint
const (
	ActionAddSubmission         = "add_submission"
	ActionAddRepresentative     = "add_representative"
	ActionUpdateAdminPassword   = "update_admin_password"
	ActionUpdateFormCredentials = "update_form_credentials"
	ActionDeleteSubmission      = "delete_submission"
	ActionDeleteRepresentative  = "delete_representative"
)

// Target resolves where to mirror, if anywhere. Settings can change at runtime.
type Target interface {
	SheetsTarget(ctx context.Context) (endpoint string, enabled bool)
}

// Response is the endpoint's reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Client struct {
	HTTP   *http.Client
	target Target
	log    zerolog.Logger
}

func New(target Target, timeout time.Duration) *Client {
	return &Client{
		HTTP:   &http.Client{Timeout: timeout},
		target: target,
		log:    logger.For("sheets"),
	}
}

// Mirror resolves the target and sends in the background. Failures are
// logged and never reach the caller.
func (c *Client) Mirror(ctx context.Context, action string, payload map[string]any) {
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, c.HTTP.Timeout)
		defer cancel()
		endpoint, enabled := c.target.SheetsTarget(ctx)
		if !enabled {
			return
		}
		if _, err := c.Send(ctx, endpoint, action, payload); err != nil {
			c.log.Warn().Err(err).Str("action", action).Msg("spreadsheet mirror failed")
		}
	}()
}

// Send posts one action as the form field "data".
func (c *Client) Send(ctx context.Context, endpoint, action string, payload map[string]any) (*Response, error) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["action"] = action

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode sheets payload: %w", err)
	}
	form := url.Values{"data": {string(raw)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach sheets endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sheets endpoint error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode sheets response: %w", err)
	}
	if !out.Success {
		return &out, fmt.Errorf("sheets endpoint rejected %s: %s", action, out.Message)
	}
	return &out, nil
}
