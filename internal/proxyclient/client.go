// Package proxyclient reaches store B through the bounded-concurrency proxy.
package proxyclient

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

	"mandoub-backend/internal/proxy"
	"mandoub-backend/internal/store"
	"mandoub-backend/pkg/utils"
)

// Client implements store.DocumentStore against the proxy's HTTP API.
type Client struct {
	BaseURL  string
	Resource string
	HTTP     *http.Client
}

func New(baseURL, resource string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Resource: resource,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	ID      string          `json:"id"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) Create(ctx context.Context, collection, id string, data map[string]any) (*store.Document, error) {
	query := url.Values{}
	if id != "" {
		query.Set("id", id)
	}
	var doc store.Document
	if err := c.do(ctx, http.MethodPost, c.path(collection), query, data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) List(ctx context.Context, collection string, filter store.Filter) ([]*store.Document, error) {
	query := url.Values{}
	for k, v := range filter {
		query.Set(k, fmt.Sprint(v))
	}
	var docs []*store.Document
	if err := c.do(ctx, http.MethodGet, c.path(collection), query, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) Update(ctx context.Context, collection, id string, patch map[string]any) (*store.Document, error) {
	var doc store.Document
	if err := c.do(ctx, http.MethodPatch, c.path(collection, id), nil, patch, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, c.path(collection, id), nil, nil, nil)
}

func (c *Client) path(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return "/api/" + c.Resource + "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build proxy request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", store.ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read proxy response: %v", store.ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		var e utils.ErrorBody
		msg := ""
		if err := json.Unmarshal(raw, &e); err == nil {
			msg = e.Error
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if sentinel := proxy.ErrorFor(resp.StatusCode); sentinel != nil {
			return fmt.Errorf("%w: %s", sentinel, msg)
		}
		return fmt.Errorf("proxy returned %d: %s", resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode proxy response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// Ping checks that the proxy answers its health route.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy health returned %d", resp.StatusCode)
	}
	return nil
}
