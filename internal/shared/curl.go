// Utilities for parsing cURL commands copied from the Callyzer API console.
package shared

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRegex = regexp.MustCompile(`(?:-H|--header)\s+'([^']+)'|(?:-H|--header)\s+"([^"]+)"`)
	curlMethodRegex = regexp.MustCompile(`(?:-X|--request)\s+'?"?([A-Za-z]+)`)
	curlURLRegex    = regexp.MustCompile(`(?:'|"|\s)(https?://[^\s'"]+)`)
	curlDataRegex   = regexp.MustCompile(`(?:-d|--data|--data-raw)\s`)
)

// CurlRequest is the request line and headers parsed from a cURL command.
type CurlRequest struct {
	Method  string
	URL     *url.URL
	Headers map[string]string
}

// ParseCurlFile reads a .sh file containing a cURL command and parses it.
func ParseCurlFile(filepath string) (*CurlRequest, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(content)
}

// ParseCurlCommand parses a cURL command string. Header names are lowercased.
//
// The method defaults to GET, or POST when the command carries a body.
func ParseCurlCommand(data []byte) (*CurlRequest, error) {
	curlCmd := string(data)
	curlCmd = strings.ReplaceAll(curlCmd, "\\\r\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")

	rawURL := curlURLRegex.FindStringSubmatch(" " + curlHeaderRegex.ReplaceAllString(curlCmd, " "))
	if rawURL == nil {
		return nil, fmt.Errorf("%w: no URL found in curl command", ErrInvalidInput)
	}
	u, err := url.Parse(rawURL[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	headers := make(map[string]string)
	for _, match := range curlHeaderRegex.FindAllStringSubmatch(curlCmd, -1) {
		line := match[1]
		if line == "" {
			line = match[2]
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	method := "GET"
	if curlDataRegex.MatchString(curlCmd) {
		method = "POST"
	}
	if m := curlMethodRegex.FindStringSubmatch(curlCmd); m != nil {
		method = strings.ToUpper(m[1])
	}

	return &CurlRequest{Method: method, URL: u, Headers: headers}, nil
}

// APIKey returns the key from the spi-key header, or the token of a bearer Authorization header.
func (c *CurlRequest) APIKey() string {
	if key := c.Headers["spi-key"]; key != "" {
		return key
	}
	auth := c.Headers["authorization"]
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// Company returns the company header, which the employee and summary endpoints require.
func (c *CurlRequest) Company() string {
	return c.Headers["company"]
}

// SplitEndpoint splits the URL into a base (scheme, host and the path up to
// and including the last "/api/<version>/" segment) and the endpoint path
// relative to it. URLs without a versioned api segment split at the host.
func (c *CurlRequest) SplitEndpoint() (base, endpoint string) {
	root := c.URL.Scheme + "://" + c.URL.Host
	path := strings.TrimPrefix(c.URL.Path, "/")

	segments := strings.Split(path, "/")
	for i := len(segments) - 2; i >= 0; i-- {
		if segments[i] == "api" {
			cut := i + 2
			if cut > len(segments) {
				break
			}
			return root + "/" + strings.Join(segments[:cut], "/") + "/", strings.Join(segments[cut:], "/")
		}
	}
	return root + "/", path
}
