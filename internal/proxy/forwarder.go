// Package proxy forwards pass-through requests to the real upstream host.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"
)

// hopHeaders are meaningful only for a single connection and are never relayed.
var hopHeaders = []string{
	"Keep-Alive",
	"Transfer-Encoding",
	"Te",
	"Connection",
	"Trailer",
	"Upgrade",
	"Proxy-Authorization",
	"Proxy-Authenticate",
}

// Response is a fully buffered upstream response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// Config holds forwarder settings.
type Config struct {
	// Scheme of the upstream URL. Always https outside of tests.
	Scheme string
	// StripRequestHopByHop removes hop-by-hop headers before forwarding.
	StripRequestHopByHop bool
	// Timeout bounds one forward including the body read. Zero disables it.
	Timeout time.Duration
	// Transport overrides the outbound round tripper.
	Transport http.RoundTripper
}

// DefaultConfig returns the production forwarder configuration.
func DefaultConfig() Config {
	return Config{
		Scheme:               "https",
		StripRequestHopByHop: true,
		Timeout:              30 * time.Second,
	}
}

// Forwarder replays requests against the upstream named in the request.
type Forwarder struct {
	config     Config
	httpClient *http.Client
}

// NewForwarder creates a forwarder. A nil Transport gets a transport that
// never negotiates compression, so upstream bytes pass through untouched.
func NewForwarder(config Config) *Forwarder {
	if config.Scheme == "" {
		config.Scheme = "https"
	}

	transport := config.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 nil,
			DisableCompression:    true,
			ForceAttemptHTTP2:     true,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: config.Timeout,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		}
	}

	return &Forwarder{
		config: config,
		httpClient: &http.Client{
			Transport: transport,
			// Redirects are the client's business.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// TargetURL builds the upstream URL: host from an absolute request target or
// the Host header, path and query from the original request URI.
func (f *Forwarder) TargetURL(r *http.Request) string {
	host := r.Host
	if r.URL.IsAbs() && r.URL.Host != "" {
		host = r.URL.Host
	}
	return f.config.Scheme + "://" + host + r.URL.RequestURI()
}

// Forward sends r upstream and returns the buffered response.
// Upstream 4xx and 5xx answers are responses, not errors.
func (f *Forwarder) Forward(ctx context.Context, r *http.Request) (*Response, error) {
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, newTransportError(fmt.Errorf("read request body: %w", err))
		}
	}

	outReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(r.Method), f.TargetURL(r), bytes.NewReader(body))
	if err != nil {
		return nil, newTransportError(fmt.Errorf("build upstream request: %w", err))
	}

	outReq.Header = r.Header.Clone()
	if outReq.Header == nil {
		outReq.Header = make(http.Header)
	}
	if f.config.StripRequestHopByHop {
		removeHopByHop(outReq.Header)
	}
	outReq.Header.Set("Connection", "close")
	outReq.Close = true
	if _, ok := outReq.Header["User-Agent"]; !ok {
		// An explicit empty value stops net/http from adding its own.
		outReq.Header.Set("User-Agent", "")
	}

	resp, err := f.httpClient.Do(outReq)
	if err != nil {
		return nil, newTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newProtocolError(fmt.Errorf("read upstream body: %w", err))
	}

	header := resp.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	removeHopByHop(header)
	if header.Get("Content-Length") == "" && bodyAllowed(outReq.Method, resp.StatusCode) {
		header.Set("Content-Length", strconv.Itoa(len(respBody)))
	}
	header.Set("Connection", "close")

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     header,
		Body:       respBody,
	}, nil
}

// removeHopByHop deletes the fixed hop-by-hop set plus every field the
// sender named in its Connection header.
func removeHopByHop(h http.Header) {
	for _, value := range h.Values("Connection") {
		for _, name := range strings.Split(value, ",") {
			name = textproto.TrimString(name)
			if name != "" && httpguts.ValidHeaderFieldName(name) {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

func bodyAllowed(method string, status int) bool {
	if method == http.MethodHead {
		return false
	}
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
