package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// TestContext holds one simulated browser: its cookie jar carries the
// session cookie between requests. Redirects are not followed so scenarios
// can assert on them.
type TestContext struct {
	BaseURL    string
	AdminToken string
	client     *http.Client
	status     int
	location   string
	body       []byte
	remembered map[string]string
}

func NewTestContext(baseURL, adminToken string) *TestContext {
	tc := &TestContext{BaseURL: strings.TrimRight(baseURL, "/"), AdminToken: adminToken}
	tc.Reset()
	return tc
}

// Reset starts a fresh browser.
func (tc *TestContext) Reset() {
	jar, _ := cookiejar.New(nil)
	tc.client = &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	tc.status, tc.location, tc.body = 0, "", nil
	tc.remembered = map[string]string{}
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, "", headers)
}

func (tc *TestContext) DELETE(path string, headers map[string]string) error {
	return tc.do(http.MethodDelete, path, nil, "", headers)
}

func (tc *TestContext) POST(path string, body any) error {
	if body == nil {
		return tc.do(http.MethodPost, path, nil, "", nil)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return tc.do(http.MethodPost, path, bytes.NewReader(data), "application/json", nil)
}

func (tc *TestContext) PostForm(path string, form url.Values) error {
	return tc.do(http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil)
}

func (tc *TestContext) do(method, path string, body io.Reader, contentType string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.body, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	tc.status = resp.StatusCode
	tc.location = resp.Header.Get("Location")
	return nil
}

func (tc *TestContext) GetLastResponseStatus() int  { return tc.status }
func (tc *TestContext) GetLastResponseBody() []byte { return tc.body }
func (tc *TestContext) GetLocation() string         { return tc.location }
func (tc *TestContext) GetAdminToken() string       { return tc.AdminToken }

// GetResponseField reads a dotted path from the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.body, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, part := range strings.Split(field, ".") {
		m, ok := doc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q not found", field)
		}
		if doc, ok = m[part]; !ok {
			return nil, fmt.Errorf("field %q not found", field)
		}
	}
	return doc, nil
}

// Remember and Recall carry values such as draft references between steps.
func (tc *TestContext) Remember(name, value string) { tc.remembered[name] = value }
func (tc *TestContext) Recall(name string) string   { return tc.remembered[name] }
