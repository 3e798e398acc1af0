// Utilities for replaying browser headers captured with "Copy as cURL".
package shared

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`-b\s+'([^']+)'|-b\s+"([^"]+)"`)
)

// hopHeaders are owned by the HTTP client and never replayed.
var hopHeaders = map[string]bool{
	"host":              true,
	"content-length":    true,
	"accept-encoding":   true,
	"connection":        true,
	"transfer-encoding": true,
}

// CurlHeaders represents parsed headers and cookies from a cURL command.
type CurlHeaders struct {
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a file containing a cURL command and extracts headers.
func ParseCurlFile(path string) (*CurlHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(content)
}

// ParseCurlCommand parses a cURL command string and extracts headers.
//
// Cookies are taken from -b, falling back to a "cookie:" header.
func ParseCurlCommand(data []byte) (*CurlHeaders, error) {
	cmd := strings.ReplaceAll(string(data), "\\\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\", "")

	headers := make(map[string]string)
	var cookie string

	for _, match := range curlHeaderRe.FindAllStringSubmatch(cmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch lower := strings.ToLower(key); {
		case lower == "cookie":
			if cookie == "" {
				cookie = value
			}
		case hopHeaders[lower]:
		default:
			headers[key] = value
		}
	}

	if match := curlCookieRe.FindStringSubmatch(cmd); match != nil {
		cookie = firstGroup(match)
	}

	if len(headers) == 0 && cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}

	return &CurlHeaders{Headers: headers, Cookie: cookie}, nil
}

func firstGroup(match []string) string {
	if match[1] != "" {
		return match[1]
	}
	return match[2]
}

// Apply sets the captured headers on req without overriding headers the caller already set.
func (c *CurlHeaders) Apply(req *http.Request) {
	for key, value := range c.Headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	if c.Cookie != "" && req.Header.Get("Cookie") == "" {
		req.Header.Set("Cookie", c.Cookie)
	}
}

// HeaderTransport is an [http.RoundTripper] that replays captured browser headers.
type HeaderTransport struct {
	Headers *CurlHeaders
	Base    http.RoundTripper
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Headers == nil {
		return base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	t.Headers.Apply(clone)
	return base.RoundTrip(clone)
}

// NewYouTubeClient returns an HTTP client for YouTube requests.
//
// When headersPath is set, the cURL export at that path is parsed and its headers are sent with every request.
func NewYouTubeClient(headersPath string) (*http.Client, error) {
	if headersPath == "" {
		return &http.Client{}, nil
	}

	headers, err := ParseCurlFile(headersPath)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: &HeaderTransport{Headers: headers}}, nil
}
