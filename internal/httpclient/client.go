// Package httpclient holds the pooled HTTP client and retry loop shared by
// LLM providers and remote embedders.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

const DefaultTimeout = 120 * time.Second

// Shared returns an HTTP client with connection pooling.
// Use this instead of creating individual clients per provider.
func Shared(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
