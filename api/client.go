package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	requestTimeout = 30 * time.Second
	retryCount     = 3
	retryBaseWait  = 1 * time.Second
	retryMaxWait   = 8 * time.Second
)

// Client wraps resty with the retry policy shared by every network consumer:
// up to retryCount retries on transport errors and on 408/429/503/504, with
// exponential backoff and jitter. Other 4xx responses are not retried.
type Client struct {
	rest *resty.Client
	log  zerolog.Logger
}

func NewClient(logger zerolog.Logger) *Client {
	c := &Client{log: logger}
	c.rest = resty.New().
		SetTimeout(requestTimeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryBaseWait).
		SetRetryMaxWaitTime(retryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			switch r.StatusCode() {
			case http.StatusRequestTimeout,
				http.StatusTooManyRequests,
				http.StatusServiceUnavailable,
				http.StatusGatewayTimeout:
				return true
			}
			return false
		})
	c.rest.AddRetryHook(func(r *resty.Response, err error) {
		evt := c.log.Warn().Int("attempt", r.Request.Attempt)
		if err != nil {
			evt = evt.Err(err)
		} else {
			evt = evt.Int("status", r.StatusCode())
		}
		evt.Str("url", r.Request.URL).Msg("retrying request")
	})
	return c
}

// GetString fetches a URL and returns the response body as text.
func (c *Client) GetString(ctx context.Context, url string) (string, error) {
	resp, err := c.rest.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("GET %s: %s", url, resp.Status())
	}
	return resp.String(), nil
}

// GetBytes fetches a URL and returns the raw response body.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.rest.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status())
	}
	return resp.Body(), nil
}

// GetJSON fetches a URL and decodes the response body into out. The content
// type is forced to JSON since some metadata endpoints mislabel theirs.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	resp, err := c.rest.R().SetContext(ctx).SetResult(out).ForceContentType("application/json").Get(url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("GET %s: %s", url, resp.Status())
	}
	return nil
}

// GetStream opens a URL for streaming and returns the body along with the
// content length, or -1 when the server did not declare one. The caller owns
// closing the reader.
func (c *Client) GetStream(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	resp, err := c.rest.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return nil, 0, err
	}
	body := resp.RawBody()
	if resp.StatusCode() >= http.StatusBadRequest {
		body.Close()
		return nil, 0, fmt.Errorf("GET %s: %s", url, resp.Status())
	}
	return body, resp.RawResponse.ContentLength, nil
}

// PostJSON posts a JSON payload and returns the response body as text.
func (c *Client) PostJSON(ctx context.Context, url string, body string) (string, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("POST %s: %s", url, resp.Status())
	}
	return resp.String(), nil
}
