// Package rpc is the HTTP client for the remote Payy prover/node service.
// The node performs every cryptographic operation the wallet needs (address
// derivation, commitments, proof generation, verification); the client only
// moves JSON.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout bounds ordinary calls so a down backend fails fast.
	DefaultTimeout = 10 * time.Second

	// ProofTimeout bounds proof generation, which runs remotely and can
	// legitimately take minutes.
	ProofTimeout = 3 * time.Minute
)

// ErrUnreachable means the node could not be reached at all, as opposed to
// the node reaching a decision and rejecting the request.
var ErrUnreachable = errors.New("payy node unreachable")

// RequestError is a rejection the node itself produced.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("node rejected request (status %d)", e.Status)
	}
	return fmt.Sprintf("node rejected request (status %d): %s", e.Status, e.Message)
}

type Client struct {
	client      *http.Client
	proofClient *http.Client
	baseURL     string
	breaker     *Breaker
	logger      *logrus.Entry
}

func NewClient(baseURL string, logger *logrus.Entry) *Client {
	return &Client{
		client:      &http.Client{Timeout: DefaultTimeout},
		proofClient: &http.Client{Timeout: ProofTimeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		breaker:     NewBreaker(defaultFailureThreshold, defaultCooldown),
		logger:      logger,
	}
}

// Breaker exposes the read-path circuit breaker, mainly for tests and for
// callers that want to surface availability in a UI.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// call POSTs a JSON request and decodes the JSON response into out. A
// transport failure wraps ErrUnreachable; an HTTP error status becomes a
// *RequestError carrying whatever message the node returned.
func (c *Client) call(ctx context.Context, httpClient *http.Client, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		c.breaker.Failure()
		return fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.Failure()
		return fmt.Errorf("%w: reading response: %s", ErrUnreachable, err)
	}
	c.breaker.Success()

	if resp.StatusCode >= 400 {
		reqErr := &RequestError{Status: resp.StatusCode}
		var errBody struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &errBody) == nil {
			if errBody.Error != "" {
				reqErr.Message = errBody.Error
			} else {
				reqErr.Message = errBody.Message
			}
		}
		c.logger.WithField("path", path).WithField("status", resp.StatusCode).
			Debugf("node rejected request: %s", reqErr.Message)
		return reqErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
