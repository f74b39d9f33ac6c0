package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ErrEmptyBody is returned when the upstream answers 2xx with nothing in it.
var ErrEmptyBody = errors.New("empty body")

// StatusError is a non-2xx answer.
type StatusError struct {
	Name string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s upstream status %d", e.Name, e.Code)
}

// Response is a fully read upstream body.
type Response struct {
	Body        []byte
	ContentType string
}

// Upstream wraps GETs to one remote with a timeout and a circuit breaker.
type Upstream struct {
	name    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	maxBody int64
}

// New builds an upstream; breaker may be nil.
func New(name string, timeout time.Duration, breaker *gobreaker.CircuitBreaker) *Upstream {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Upstream{
		name:    name,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
		maxBody: 20 << 20,
	}
}

// Get performs the request and reads the whole body. Transport errors,
// non-2xx statuses and empty bodies count as breaker failures.
func (u *Upstream) Get(ctx context.Context, url string) (*Response, error) {
	if u.breaker == nil {
		return u.get(ctx, url)
	}
	res, err := u.breaker.Execute(func() (interface{}, error) {
		return u.get(ctx, url)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s breaker open: %w", u.name, err)
		}
		return nil, err
	}
	return res.(*Response), nil
}

func (u *Upstream) get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s bad url: %w", u.name, err)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request error: %w", u.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{Name: u.name, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, u.maxBody))
	if err != nil {
		return nil, fmt.Errorf("%s read error: %w", u.name, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%s: %w", u.name, ErrEmptyBody)
	}
	return &Response{Body: body, ContentType: strings.TrimSpace(resp.Header.Get("Content-Type"))}, nil
}
