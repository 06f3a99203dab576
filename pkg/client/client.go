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
	"strconv"
	"strings"
	"time"
)

// Errors matched by *APIError through errors.Is.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrNotAuthorized = errors.New("not authorized")
	ErrNotFound      = errors.New("not found")
)

// APIError is a non-2xx response from the notary.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notary returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status code onto a sentinel error.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusForbidden:
		return ErrNotAuthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// Challenge is the message a wallet must sign to prove ownership.
type Challenge struct {
	Address          string  `json:"address"`
	RequestTimeStamp string  `json:"requestTimeStamp"`
	Message          string  `json:"message"`
	ValidationWindow float64 `json:"validationWindow"`
}

// SignatureStatus echoes the challenge with the verdict on the signature.
type SignatureStatus struct {
	Challenge
	MessageSignature string `json:"messageSignature"`
}

// SignatureResult is the response to ValidateSignature.
type SignatureResult struct {
	RegisterStar bool            `json:"registerStar"`
	Status       SignatureStatus `json:"status"`
}

// Star is a registered star. Story is hex-encoded on the ledger;
// StoryDecoded carries the plain text on responses.
type Star struct {
	RA           string `json:"ra"`
	Dec          string `json:"dec"`
	Story        string `json:"story"`
	StoryDecoded string `json:"storyDecoded,omitempty"`
}

// Body binds an address to its star.
type Body struct {
	Address string `json:"address"`
	Star    *Star  `json:"star,omitempty"`
}

// Block is one ledger entry.
type Block struct {
	Hash         string `json:"hash"`
	Height       uint64 `json:"height"`
	Body         Body   `json:"body"`
	Timestamp    int64  `json:"timestamp"`
	PreviousHash string `json:"previousHash"`
}

// VerifyResult is the ledger self-validation report.
type VerifyResult struct {
	Valid  bool   `json:"valid"`
	Height uint64 `json:"height"`
	Kind   string `json:"kind,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Client talks to a star notary server.
type Client struct {
	base       string
	httpClient *http.Client
	userAgent  string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.userAgent = ua
		return nil
	}
}

// New creates a Client for the notary at base.
//
//	c, err := client.New("http://localhost:8000", client.WithTimeout(5*time.Second))
func New(base string, opts ...Option) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid notary URL %q", base)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userAgent:  "starnotary-go",
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// RequestValidation starts, or returns the live, challenge for address.
func (c *Client) RequestValidation(ctx context.Context, address string) (*Challenge, error) {
	var out Challenge
	if err := c.call(ctx, http.MethodPost, "/requestValidation", map[string]string{"address": address}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValidateSignature submits the base64 signature of the challenge message.
func (c *Client) ValidateSignature(ctx context.Context, address, signature string) (*SignatureResult, error) {
	var out SignatureResult
	body := map[string]string{"address": address, "signature": signature}
	if err := c.call(ctx, http.MethodPost, "/message-signature/validate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterStar spends address's authorization on a new block. star.Story is
// the plain text; the server encodes it.
func (c *Client) RegisterStar(ctx context.Context, address string, star Star) (*Block, error) {
	body := struct {
		Address string `json:"address"`
		Star    Star   `json:"star"`
	}{Address: address, Star: Star{RA: star.RA, Dec: star.Dec, Story: star.Story}}

	var out Block
	if err := c.call(ctx, http.MethodPost, "/block", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Block returns the block at height.
func (c *Client) Block(ctx context.Context, height uint64) (*Block, error) {
	var out Block
	if err := c.call(ctx, http.MethodGet, "/block/"+strconv.FormatUint(height, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StarsByAddress returns every block registered by address.
func (c *Client) StarsByAddress(ctx context.Context, address string) ([]Block, error) {
	var out []Block
	if err := c.call(ctx, http.MethodGet, "/stars/address/"+url.PathEscape(address), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StarByHash returns the block with the given hash.
func (c *Client) StarByHash(ctx context.Context, hash string) (*Block, error) {
	var out Block
	if err := c.call(ctx, http.MethodGet, "/stars/hash/"+url.PathEscape(hash), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chain returns the whole ledger.
func (c *Client) Chain(ctx context.Context) ([]Block, error) {
	var out []Block
	if err := c.call(ctx, http.MethodGet, "/chain", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerifyChain asks the server to self-validate its ledger.
func (c *Client) VerifyChain(ctx context.Context) (*VerifyResult, error) {
	var out VerifyResult
	if err := c.call(ctx, http.MethodGet, "/chain/verify", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call sends reqBody as JSON and decodes a 2xx response into respBody.
func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var rdr io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
