package paywatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client is the paywatch SDK entry point.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	obs     *observer
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:8000".
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("paywatch: invalid base url %q", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.apiKey,
		http:    hc,
		obs:     obs,
	}, nil
}

// Upload sends a workbook read from r under filename and waits for it to be published.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (res UploadResult, err error) {
	call := c.obs.begin("upload")
	defer func() { call.end(err) }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return UploadResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err = io.Copy(part, r); err != nil {
		return UploadResult{}, fmt.Errorf("read workbook: %w", err)
	}
	if err = mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("close form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload-excel/", &body)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	if _, err = c.do(req, &res); err != nil {
		return UploadResult{}, err
	}
	call.with("generation", res.Generation, "rows", res.Rows, "chunks", res.Chunks)
	return res, nil
}

// UploadFile uploads the workbook at path.
func (c *Client) UploadFile(ctx context.Context, path string) (UploadResult, error) {
	f, err := os.Open(path) //nolint:gosec // path is chosen by the caller
	if err != nil {
		return UploadResult{}, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()
	return c.Upload(ctx, path, f)
}

// Query asks a question about the uploaded data.
func (c *Client) Query(ctx context.Context, question string) (ans Answer, err error) {
	call := c.obs.begin("query")
	defer func() { call.end(err) }()

	payload, err := json.Marshal(map[string]string{"query": question})
	if err != nil {
		return Answer{}, fmt.Errorf("marshal query: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/query/", bytes.NewReader(payload))
	if err != nil {
		return Answer{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		Answer string `json:"answer"`
	}
	header, err := c.do(req, &body)
	if err != nil {
		return Answer{}, err
	}
	ans = Answer{Text: body.Answer, Usage: usageFromHeader(header)}
	call.usage(ans.Usage)
	return ans, nil
}

// Logs returns the events recorded on date (YYYYMMDD, empty for today) of logType
// ("all", "queries", "responses", "uploads", "errors"; empty for all).
func (c *Client) Logs(ctx context.Context, date, logType string) (page LogsPage, err error) {
	call := c.obs.begin("logs")
	defer func() { call.end(err) }()

	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	if logType != "" {
		q.Set("log_type", logType)
	}
	path := "/logs/"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, http.NoBody)
	if err != nil {
		return LogsPage{}, err
	}
	if _, err = c.do(req, &page); err != nil {
		return LogsPage{}, err
	}
	call.with("date", page.Date, "entries", page.Count)
	return page, nil
}

// Health returns the server health report. A degraded server is not an error.
func (c *Client) Health(ctx context.Context) (hs HealthStatus, err error) {
	call := c.obs.begin("health")
	defer func() { call.end(err) }()

	req, err := c.newRequest(ctx, http.MethodGet, "/health", http.NoBody)
	if err != nil {
		return HealthStatus{}, err
	}
	_, err = c.do(req, &hs)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable && hs.Status != "" {
		call.with("status", hs.Status)
		return hs, nil
	}
	if err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("paywatch: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

// do sends req and decodes a 2xx body into out. A 503 body is still decoded into out
// so Health can report a degraded server.
func (c *Client) do(req *http.Request, out any) (http.Header, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paywatch: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.Header, fmt.Errorf("paywatch: decode response: %w", err)
		}
		return resp.Header, nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		apiErr.Code, apiErr.Message = body.Code, body.Message
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		_ = json.Unmarshal(data, out)
	}
	return resp.Header, apiErr
}

func usageFromHeader(h http.Header) Usage {
	atoi := func(name string) int {
		n, _ := strconv.Atoi(h.Get(name))
		return n
	}
	return Usage{
		PromptTokens:     atoi("X-Prompt-Tokens"),
		CompletionTokens: atoi("X-Completion-Tokens"),
		EmbeddingTokens:  atoi("X-Embedding-Tokens"),
		ToolCalls:        atoi("X-Tool-Calls"),
	}
}
