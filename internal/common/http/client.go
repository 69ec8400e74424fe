// internal/common/http/client.go
package http

import (
	"net/http"
	"time"
)

type Client struct {
	httpClient *http.Client
}

// NewClient builds a client whose requests pass through transport. A nil transport uses
// http.DefaultTransport.
func NewClient(timeout time.Duration, transport http.RoundTripper) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}
