package shared

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`(?:-H|--header)\s+(?:'([^']+)'|"([^"]+)")`)
	curlCookieRe = regexp.MustCompile(`(?:-b|--cookie)\s+(?:'([^']+)'|"([^"]+)")`)
)

// BrowserHeaders are the request headers captured from a signed-in YouTube Music browser session.
//
// The YouTube Music proxy turns them into the auth file sent with every request.
type BrowserHeaders struct {
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a shell file holding a "Copy as cURL" command and extracts its headers.
func ParseCurlFile(path string) (*BrowserHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}
	return ParseCurl(content)
}

// ParseCurl extracts headers and the cookie from a cURL command.
//
// A cookie passed with -b wins over a Cookie header.
func ParseCurl(data []byte) (*BrowserHeaders, error) {
	cmd := strings.ReplaceAll(string(data), "\\\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\", "")

	bh := &BrowserHeaders{Headers: make(map[string]string)}
	for _, m := range curlHeaderRe.FindAllStringSubmatch(cmd, -1) {
		key, value, ok := strings.Cut(firstGroup(m), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if strings.EqualFold(key, "cookie") {
			if bh.Cookie == "" {
				bh.Cookie = value
			}
			continue
		}
		bh.Headers[key] = value
	}

	if m := curlCookieRe.FindStringSubmatch(cmd); m != nil {
		bh.Cookie = firstGroup(m)
	}

	if len(bh.Headers) == 0 && bh.Cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}
	return bh, nil
}

func firstGroup(m []string) string {
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

// Raw renders the headers as newline-separated "Key: Value" pairs sorted by key, cookie last.
func (b *BrowserHeaders) Raw() string {
	keys := make([]string, 0, len(b.Headers))
	for k := range b.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		lines = append(lines, k+": "+b.Headers[k])
	}
	if b.Cookie != "" {
		lines = append(lines, "cookie: "+b.Cookie)
	}
	return strings.Join(lines, "\n")
}
