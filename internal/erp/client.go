// Package erp is a small client for the Frappe/ERPNext REST API: document
// CRUD under /api/resource and RPC calls under /api/method. Every failure is
// normalized into *Error or one of the sentinel errors before it leaves the
// package.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SessionCookie is the cookie Frappe issues on login.
const SessionCookie = "sid"

// Client talks to one ERP site. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu  sync.RWMutex
	sid string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets a per-request timeout. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New returns a client for the ERP at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the site root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// SetSession installs a session id obtained earlier (e.g. restored from disk).
func (c *Client) SetSession(sid string) {
	c.mu.Lock()
	c.sid = sid
	c.mu.Unlock()
}

// Session returns the current session id, empty when logged out.
func (c *Client) Session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sid
}

// Login authenticates with username and password and keeps the session id.
func (c *Client) Login(ctx context.Context, usr, pwd string) (string, error) {
	form := url.Values{"usr": {usr}, "pwd": {pwd}}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/method/login", nil, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, body, err := c.send(req, "Login failed. Please check your credentials.")
	if err != nil {
		return "", err
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == SessionCookie && ck.Value != "" && ck.Value != "Guest" {
			c.SetSession(ck.Value)
			return ck.Value, nil
		}
	}
	return "", normalizeError(http.StatusUnauthorized, body, "Login failed: no session returned.")
}

// Logout ends the server session and forgets it locally.
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetSession("")
	req, err := c.newRequest(ctx, http.MethodGet, "/api/method/logout", nil, nil)
	if err != nil {
		return err
	}
	_, _, err = c.send(req, "")
	return err
}

// LoggedUser returns the user id (email) of the current session.
func (c *Client) LoggedUser(ctx context.Context) (string, error) {
	var user string
	if err := c.CallGet(ctx, "frappe.auth.get_logged_user", nil, &user); err != nil {
		return "", err
	}
	if user == "" || user == "Guest" {
		return "", ErrSessionExpired
	}
	return user, nil
}

// Filter is one [field, operator, value] condition of a list query.
type Filter [3]any

// Eq is the common equality filter.
func Eq(field string, value any) Filter {
	return Filter{field, "=", value}
}

// ListQuery selects documents of a doctype.
type ListQuery struct {
	Fields  []string
	Filters []Filter
	OrderBy string
	Start   int
	Limit   int // 0 keeps the server default, -1 asks for every row
}

func (q ListQuery) values() (url.Values, error) {
	v := url.Values{}
	if len(q.Fields) > 0 {
		raw, err := json.Marshal(q.Fields)
		if err != nil {
			return nil, err
		}
		v.Set("fields", string(raw))
	}
	if len(q.Filters) > 0 {
		raw, err := json.Marshal(q.Filters)
		if err != nil {
			return nil, err
		}
		v.Set("filters", string(raw))
	}
	if q.OrderBy != "" {
		v.Set("order_by", q.OrderBy)
	}
	if q.Start > 0 {
		v.Set("limit_start", strconv.Itoa(q.Start))
	}
	switch {
	case q.Limit > 0:
		v.Set("limit_page_length", strconv.Itoa(q.Limit))
	case q.Limit < 0:
		v.Set("limit_page_length", "0")
	}
	return v, nil
}

// GetDoc loads one document into out.
func (c *Client) GetDoc(ctx context.Context, doctype, name string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, resourcePath(doctype, name), nil, nil)
	if err != nil {
		return err
	}
	_, body, err := c.send(req, "")
	if err != nil {
		return err
	}
	return decodeEnvelope(body, "data", out)
}

// ListDocs lists documents matching q into out (a pointer to a slice).
func (c *Client) ListDocs(ctx context.Context, doctype string, q ListQuery, out any) error {
	params, err := q.values()
	if err != nil {
		return fmt.Errorf("encode list query: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodGet, resourcePath(doctype, ""), params, nil)
	if err != nil {
		return err
	}
	_, body, err := c.send(req, "")
	if err != nil {
		return err
	}
	return decodeEnvelope(body, "data", out)
}

// InsertDoc creates a document and decodes the stored version into out.
func (c *Client) InsertDoc(ctx context.Context, doctype string, doc, out any) error {
	return c.writeDoc(ctx, http.MethodPost, resourcePath(doctype, ""), doc, out)
}

// UpdateDoc patches the named document and decodes the result into out.
func (c *Client) UpdateDoc(ctx context.Context, doctype, name string, doc, out any) error {
	return c.writeDoc(ctx, http.MethodPut, resourcePath(doctype, name), doc, out)
}

func (c *Client) writeDoc(ctx context.Context, method, path string, doc, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, nil, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, body, err := c.send(req, "")
	if err != nil {
		return err
	}
	return decodeEnvelope(body, "data", out)
}

// Call invokes a whitelisted method with a JSON body and decodes "message".
func (c *Client) Call(ctx context.Context, method string, args, out any) error {
	var rd io.Reader
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("encode %s args: %w", method, err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/method/"+method, nil, rd)
	if err != nil {
		return err
	}
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	_, body, err := c.send(req, "")
	if err != nil {
		return err
	}
	return decodeEnvelope(body, "message", out)
}

// CallGet invokes a method with query parameters and decodes "message".
func (c *Client) CallGet(ctx context.Context, method string, params url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/method/"+method, params, nil)
	if err != nil {
		return err
	}
	_, body, err := c.send(req, "")
	if err != nil {
		return err
	}
	return decodeEnvelope(body, "message", out)
}

// ValidateLink reports whether the named document exists. Only a successful
// answer naming a different (or no) document counts as false; transport and
// authorization failures are returned as errors.
func (c *Client) ValidateLink(ctx context.Context, doctype, name string) (bool, error) {
	var res struct {
		Name *string `json:"name"`
	}
	args := map[string]any{"doctype": doctype, "docname": name, "fields": []string{}}
	if err := c.Call(ctx, "frappe.client.validate_link", args, &res); err != nil {
		return false, err
	}
	return res.Name != nil && *res.Name == name, nil
}

// UploadedFile is the File document created by UploadFile.
type UploadedFile struct {
	Name     string `json:"name"`
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
}

// UploadFile sends a multipart upload to the upload_file method. fields are
// extra form values such as is_private and folder.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader, fields map[string]string) (*UploadedFile, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("read upload %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/method/upload_file", nil, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	_, body, err := c.send(req, "Photo upload failed.")
	if err != nil {
		return nil, err
	}
	var f UploadedFile
	if err := decodeEnvelope(body, "message", &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Download fetches the raw body of a method, e.g. a print-format PDF.
func (c *Client) Download(ctx context.Context, method string, params url.Values) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/method/"+method, params, nil)
	if err != nil {
		return nil, err
	}
	_, body, err := c.send(req, "Download failed.")
	return body, err
}

func resourcePath(doctype, name string) string {
	p := "/api/resource/" + url.PathEscape(doctype)
	if name != "" {
		p += "/" + url.PathEscape(name)
	}
	return p
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if sid := c.Session(); sid != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})
	}
	return req, nil
}

// send performs req and returns the body of a successful response. fallback
// is the message used when an error payload has nothing readable.
func (c *Client) send(req *http.Request, fallback string) (*http.Response, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, fmt.Errorf("%w: %s %s: %v", ErrUnreachable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read response: %v", ErrUnreachable, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp, body, normalizeError(resp.StatusCode, body, fallback)
	}
	return resp, body, nil
}

// decodeEnvelope unwraps the named top-level key ("data" or "message").
func decodeEnvelope(body []byte, key string, out any) error {
	if out == nil {
		return nil
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	raw, ok := env[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
