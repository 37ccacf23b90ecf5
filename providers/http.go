package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
)

// ErrNoSession is returned when a secondary-provider call has no session
// token to authenticate with.
var ErrNoSession = errors.New("no provider session for this mailbox")

// UpstreamError describes a failed call to a mail provider. Status is zero
// when the request never produced a response.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: request failed: %v", e.Provider, e.Err)
	}
	if e.Err != nil {
		if e.Body != "" {
			return fmt.Sprintf("%s: HTTP %d: %v - %s", e.Provider, e.Status, e.Err, truncate(e.Body))
		}
		return fmt.Sprintf("%s: HTTP %d: %v", e.Provider, e.Status, e.Err)
	}
	body := e.Body
	if body == "" {
		body = "request failed"
	}
	return fmt.Sprintf("%s: HTTP %d %s - %s", e.Provider, e.Status, http.StatusText(e.Status), truncate(body))
}

const maxErrorBody = 512

func truncate(body string) string {
	if len(body) <= maxErrorBody {
		return body
	}
	return body[:maxErrorBody] + "..."
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// jsonClient performs JSON requests against one provider.
type jsonClient struct {
	provider string
	client   *fasthttp.Client
	timeout  time.Duration
}

func newJSONClient(provider string, timeout time.Duration) *jsonClient {
	return &jsonClient{
		provider: provider,
		timeout:  timeout,
		client: &fasthttp.Client{
			Name:                "tempinbox",
			MaxIdleConnDuration: 30 * time.Second,
		},
	}
}

type request struct {
	method string
	url    string
	token  string
	body   interface{}
}

// do sends req and decodes a 2xx JSON response into out. A nil out discards
// the body.
func (c *jsonClient) do(ctx context.Context, r request, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.url)
	req.Header.SetMethod(r.method)
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return &UpstreamError{Provider: c.provider, Err: fmt.Errorf("encode request: %w", err)}
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return &UpstreamError{Provider: c.provider, Err: err}
	}

	var err error
	if timeout > 0 {
		err = c.client.DoTimeout(req, resp, timeout)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return &UpstreamError{Provider: c.provider, Err: err}
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return &UpstreamError{Provider: c.provider, Status: status, Body: string(resp.Body())}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &UpstreamError{
			Provider: c.provider,
			Status:   status,
			Body:     string(resp.Body()),
			Err:      fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}
