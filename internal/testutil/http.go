package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
)

var clientSeq atomic.Int32

// Client drives a handler like a browser: it keeps cookies, echoes the
// CSRF token and always comes from the same client IP.
type Client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
	csrf    string
	IP      string
}

// NewClient gives every client its own IP so per-IP rate limits don't leak
// between tests.
func NewClient(t *testing.T, handler http.Handler) *Client {
	n := clientSeq.Add(1)
	return &Client{
		t:       t,
		handler: handler,
		cookies: make(map[string]*http.Cookie),
		IP:      fmt.Sprintf("10.%d.%d.%d", (n>>16)&0xff, (n>>8)&0xff, n&0xff),
	}
}

// Response is a recorded response with its decoded JSON envelope.
type Response struct {
	Code     int             `json:"-"`
	Header   http.Header     `json:"-"`
	Body     []byte          `json:"-"`
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Data     json.RawMessage `json:"data"`
	Redirect string          `json:"redirect"`
}

// Decode unmarshals Data into v.
func (r *Response) Decode(t *testing.T, v any) {
	t.Helper()
	err := json.Unmarshal(r.Data, v)
	if err != nil {
		t.Fatalf("Failed to decode response data %s: %v", r.Data, err)
	}
}

func (c *Client) Get(path string) *Response {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

// Form sends a urlencoded body with the CSRF header.
func (c *Client) Form(method, path string, form url.Values) *Response {
	c.ensureCSRF()

	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRF-Token", c.csrf)
	return c.do(req)
}

func (c *Client) Post(path string, form url.Values) *Response {
	return c.Form(http.MethodPost, path, form)
}

// FilePart is one file of a multipart upload.
type FilePart struct {
	Field    string
	Filename string
	Content  []byte
}

func (c *Client) Multipart(path string, fields url.Values, files ...FilePart) *Response {
	c.ensureCSRF()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, values := range fields {
		for _, v := range values {
			_ = mw.WriteField(key, v)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			c.t.Fatalf("Failed to create form file: %v", err)
		}
		_, _ = part.Write(f.Content)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-CSRF-Token", c.csrf)
	return c.do(req)
}

func (c *Client) ensureCSRF() {
	if c.csrf == "" {
		c.Get("/healthz")
	}
	if c.csrf == "" {
		c.t.Fatal("no CSRF token issued")
	}
}

// Cookie returns the stored cookie value, or "".
func (c *Client) Cookie(name string) string {
	if ck, ok := c.cookies[name]; ok {
		return ck.Value
	}
	return ""
}

// DropCookie forgets a cookie, like a browser whose cookie expired.
func (c *Client) DropCookie(name string) {
	delete(c.cookies, name)
}

func (c *Client) do(req *http.Request) *Response {
	c.t.Helper()

	req.Header.Set("X-Forwarded-For", c.IP)
	req.Header.Set("Accept", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	res := rec.Result()
	for _, ck := range res.Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	if token := res.Header.Get("X-CSRF-Token"); token != "" {
		c.csrf = token
	}

	body, _ := io.ReadAll(res.Body)
	out := &Response{Code: res.StatusCode, Header: res.Header, Body: body}
	if strings.HasPrefix(res.Header.Get("Content-Type"), "application/json") {
		err := json.Unmarshal(body, out)
		if err != nil {
			c.t.Fatalf("Failed to decode %s %s response %q: %v", req.Method, req.URL.Path, body, err)
		}
	}
	return out
}
