package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender re-delivers stored events to a receiver endpoint. The payload is
// sent byte for byte; when a signing secret is set, every attempt gets a
// fresh signature so retries never trip the receiver's tolerance window.
type Sender struct {
	client *http.Client
}

// NewSender creates a sender with a default HTTP client.
func NewSender() *Sender {
	return &Sender{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// NewSenderWithClient creates a sender with a custom HTTP client.
func NewSenderWithClient(client *http.Client) *Sender {
	if client == nil {
		return NewSender()
	}
	return &Sender{client: client}
}

// Send posts payload to targetURL, retrying temporary failures.
// The returned result describes the last attempt.
func (s *Sender) Send(ctx context.Context, targetURL string, payload []byte, opts ...SendOption) (DeliveryResult, error) {
	if err := validateTarget(targetURL, payload); err != nil {
		return DeliveryResult{}, err
	}

	options := defaultSendOptions()
	for _, opt := range opts {
		opt(options)
	}

	var (
		result  DeliveryResult
		lastErr error
	)
	for attempt := 0; attempt <= options.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(options.backoffStrategy.NextInterval(attempt)):
			}
		}

		var err error
		result, err = s.attempt(ctx, targetURL, payload, options)
		result.Attempt = attempt + 1
		if options.onDelivery != nil {
			options.onDelivery(result)
		}
		if err == nil {
			return result, nil
		}

		lastErr = err
		if isPermanentError(result.StatusCode) {
			return result, fmt.Errorf("%w: %w", ErrPermanentFailure, err)
		}
	}

	return result, fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, options.maxRetries+1, lastErr)
}

func validateTarget(targetURL string, payload []byte) error {
	if targetURL == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(targetURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	return nil
}

func (s *Sender) attempt(ctx context.Context, targetURL string, payload []byte, options *sendOptions) (DeliveryResult, error) {
	start := time.Now()
	result := DeliveryResult{}

	reqCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, targetURL, bytes.NewReader(payload))
	if err != nil {
		result.Duration = time.Since(start)
		return result, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "billsync-replay/1.0")
	for k, v := range options.headers {
		req.Header.Set(k, v)
	}
	if options.secret != "" {
		req.Header.Set(SignatureHeader, Sign(options.secret, payload, options.now()))
	}

	client := s.client
	if options.httpClient != nil {
		client = options.httpClient
	}

	resp, err := client.Do(req)
	result.Duration = time.Since(start)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return result, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return result, fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	result.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	result.Body = body

	if !result.Success {
		msg := strings.ReplaceAll(string(body), "\n", " ")
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		return result, fmt.Errorf("receiver returned status %d: %s", resp.StatusCode, msg)
	}
	return result, nil
}

// isPermanentError treats 4xx as final, except the few codes that mean "try later".
func isPermanentError(statusCode int) bool {
	if statusCode < 400 || statusCode >= 500 {
		return false
	}
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	default:
		return true
	}
}
