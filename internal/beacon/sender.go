package beacon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	// DefaultCacheHeader carries the correlation token.
	DefaultCacheHeader = "X-Beacon-Cache"

	// maxTokenSize bounds how much of a response body becomes the token.
	maxTokenSize = 64 * 1024
)

// Doer sends HTTP requests. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Sender posts envelopes to the collection endpoint. It holds no session
// state; the correlation token is passed in and handed back by Send.
type Sender struct {
	endpoint    string
	client      Doer
	cacheHeader string
	userAgent   string
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(client Doer) SenderOption {
	return func(s *Sender) {
		if client != nil {
			s.client = client
		}
	}
}

// WithCacheHeader sets the header carrying the correlation token.
func WithCacheHeader(name string) SenderOption {
	return func(s *Sender) {
		if name != "" {
			s.cacheHeader = name
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) SenderOption {
	return func(s *Sender) { s.userAgent = ua }
}

// NewSender returns a Sender posting to endpoint.
func NewSender(endpoint string, opts ...SenderOption) (*Sender, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}
	s := &Sender{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultSendTimeout},
		cacheHeader: DefaultCacheHeader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Endpoint returns the collection URL.
func (s *Sender) Endpoint() string { return s.endpoint }

// Send posts {type, payload}. token, when non-empty, is echoed in the cache
// header. On a 2xx response the raw body is returned as the next token.
func (s *Sender) Send(ctx context.Context, kind Kind, payload any, token string) (string, error) {
	body, err := json.Marshal(Envelope{Type: kind, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncodePayload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(s.cacheHeader, token)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send %s: %w", kind, err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenSize))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return string(text), nil
}
