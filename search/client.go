package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"
)

// NewClient returns a MeiliSearch client. Host may omit the scheme.
func NewClient(host, apiKey string, logger *zap.Logger) (c *Client, err error) {
	c = &Client{
		Client: *http.DefaultClient,
		apiKey: apiKey,
		logger: logger,
	}

	// default scheme, before parsing. Otherwise domain name would be parsed as relative path url
	// MeiliSearch listens on plain http by default.
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}

	c.Host, err = url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse search host: %w", err)
	}
	if c.Host.Host == "" {
		return nil, fmt.Errorf("parse search host: empty host in %q", host)
	}

	// https://:key@host/ is accepted as well
	if password, ok := c.Host.User.Password(); ok && c.apiKey == "" {
		c.apiKey = password
	}
	c.Host.User = nil // remove `user:password@` part from host if any.

	return c, nil
}

type Client struct {
	http.Client
	Host   *url.URL
	apiKey string
	logger *zap.Logger
}

// Do wraps default http.Client.Do with authorization.
// Engines before v0.25 read X-Meili-API-Key, later ones the bearer token.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.apiKey != "" {
		req.Header.Set("X-Meili-API-Key", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return c.Client.Do(req)
}

// call sends a JSON request and decodes a JSON response into out (if not nil).
func (c *Client) call(ctx context.Context, method string, elems []string, body []byte, out interface{}) error {
	// keeps base path of the host, if engine is served behind a prefix
	addr := c.Host.ResolveReference(&url.URL{
		Path: path.Join(append([]string{"/", c.Host.Path}, elems...)...),
	})

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, addr.String(), reader)
	if err != nil {
		return fmt.Errorf("prepare %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("execute %s %s: %w", method, addr.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		if ce := c.logger.Check(zap.DebugLevel, "error response"); ce != nil {
			ce.Write(zap.ByteString("body", respBody), zap.Int("status_code", resp.StatusCode), zap.String("path", addr.Path))
		}
		herr := ErrHTTP{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(respBody, &herr) // error body is optional
		return herr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", addr.Path, err)
	}
	return nil
}

// Health checks that the engine is reachable and the key is accepted.
func (c *Client) Health(ctx context.Context) error {
	if err := c.call(ctx, http.MethodGet, []string{"health"}, nil, nil); err != nil {
		return err
	}
	// /health is public, so check the key against an authenticated route too.
	return c.call(ctx, http.MethodGet, []string{"indexes"}, nil, nil)
}

// GetOrCreateIndex returns the index with given uid, creating it when missing.
func (c *Client) GetOrCreateIndex(ctx context.Context, uid, primaryKey string) (*Index, error) {
	idx := &Index{client: c}
	err := c.call(ctx, http.MethodGet, []string{"indexes", uid}, nil, idx)
	if err == nil {
		return idx, nil
	}
	if !IsNotFound(err) {
		return nil, fmt.Errorf("get index %s: %w", uid, err)
	}

	body, err := json.Marshal(struct {
		UID        string `json:"uid"`
		PrimaryKey string `json:"primaryKey,omitempty"`
	}{uid, primaryKey})
	if err != nil {
		return nil, err
	}
	idx = &Index{client: c}
	if err := c.call(ctx, http.MethodPost, []string{"indexes"}, body, idx); err != nil {
		return nil, fmt.Errorf("create index %s: %w", uid, err)
	}
	c.logger.Info("index created", zap.String("index", uid), zap.String("primary_key", primaryKey))
	return idx, nil
}
