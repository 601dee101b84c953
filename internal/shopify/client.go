// Package shopify is a minimal GraphQL Admin API client covering the calls the
// bundle app makes: locating the deployed discount function, registering the
// automatic discount and looking up product variants.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// DefaultAPIVersion is the Admin API version used when none is configured.
const DefaultAPIVersion = "2024-10"

// maxErrorBody bounds how much of a failed response body ends up in errors.
const maxErrorBody = 4 << 10

// Options configures clients created by a Factory.
type Options struct {
	// APIVersion defaults to DefaultAPIVersion.
	APIVersion string
	// BaseURL replaces "https://<shop>" when set. Used in tests.
	BaseURL string
}

// Factory creates per-shop clients sharing one HTTP client.
type Factory struct {
	http *http.Client
	opts Options
}

// NewFactory returns a Factory that sends requests through httpClient.
func NewFactory(httpClient *http.Client, opts Options) *Factory {
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	return &Factory{http: httpClient, opts: opts}
}

// For returns a client authenticated as shop with the given access token.
func (f *Factory) For(shop, accessToken string) *Client {
	base := f.opts.BaseURL
	if base == "" {
		base = "https://" + shop
	}
	return &Client{
		http:     f.http,
		endpoint: fmt.Sprintf("%s/admin/api/%s/graphql.json", strings.TrimSuffix(base, "/"), f.opts.APIVersion),
		token:    accessToken,
		now:      time.Now,
	}
}

// Client talks to the Admin API of a single shop.
type Client struct {
	http     *http.Client
	endpoint string
	token    string
	now      func() time.Time
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// UserError is a validation error reported by an Admin API mutation.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// userErrors joins mutation user errors into one error, or returns nil.
func userErrors(errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = strings.Join(e.Field, ".") + ": " + e.Message
	}
	return errors.New(strings.Join(msgs, ", "))
}

// do executes a GraphQL operation and decodes its data into out.
func (c *Client) do(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.Errorf("graphql request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var gr graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return errors.Wrap(err, "decode response")
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, len(gr.Errors))
		for i, e := range gr.Errors {
			msgs[i] = e.Message
		}
		return errors.New(strings.Join(msgs, ", "))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return errors.Wrap(err, "decode data")
	}
	return nil
}
