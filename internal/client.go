package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultBaseURL is the hosted backend used when none is configured
	DefaultBaseURL = "https://cre-backend-uk58.onrender.com"
	// DefaultAgent is the agent requests go to unless another is selected
	DefaultAgent = "main"

	defaultRequestTimeout = 60 * time.Second
	maxErrorBody          = 64 << 10
)

// ChatRequest is the body of a non-streaming chat call
type ChatRequest struct {
	Message  string                 `json:"message"`
	ThreadID string                 `json:"thread_id"`
	Agent    string                 `json:"agent,omitempty"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// ReplyText decodes a reply given either as a string or as {"content": "..."}
type ReplyText string

func (r *ReplyText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = ReplyText(s)
		return nil
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unexpected response shape: %w", err)
	}
	*r = ReplyText(obj.Content)
	return nil
}

// ChatResponse is the reply to a non-streaming chat call
type ChatResponse struct {
	Response       ReplyText `json:"response"`
	AgentUsed      string    `json:"agent_used"`
	ThreadID       string    `json:"thread_id"`
	ProcessingTime *float64  `json:"processing_time,omitempty"`
}

// StreamRequest describes one streamed exchange
type StreamRequest struct {
	Message  string
	ThreadID string
	Agent    string
}

// AgentList is the set of agents the backend can route to
type AgentList struct {
	Agents       []string `json:"agents"`
	DefaultAgent string   `json:"default_agent"`
}

// VectorStore is a named document collection on the backend
type VectorStore struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// SearchResult is one hit of a vector store search
type SearchResult struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Score    float64                `json:"score"`
}

// StoredFile is a file held by the backend's file service
type StoredFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Purpose  string `json:"purpose"`
	Bytes    int64  `json:"bytes"`
}

// ExcelFile describes one spreadsheet known to the backend
type ExcelFile struct {
	Sheets      []string            `json:"sheets"`
	RowCount    map[string]int      `json:"row_count,omitempty"`
	ColumnNames map[string][]string `json:"column_names,omitempty"`
	Modified    string              `json:"last_modified,omitempty"`
}

// Row is one decoded spreadsheet row
type Row map[string]interface{}

// Client talks to the backend REST and streaming endpoints
type Client struct {
	rest           *resty.Client
	baseURL        string
	requestTimeout time.Duration
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithRequestTimeout bounds every non-streaming request
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// NewClient creates a client for baseURL, falling back to DefaultBaseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		rest: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json"),
		baseURL:        baseURL,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health checks that the backend root answers with 2xx
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, "health", http.MethodGet, "/api/v1", nil)
	return err
}

// Agents lists the agents the backend can route to
func (c *Client) Agents(ctx context.Context) (*AgentList, error) {
	var out AgentList
	if err := c.doJSON(ctx, "agents", http.MethodGet, "/api/v1/agent/agents", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends one message and waits for the complete reply
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Agent == "" {
		req.Agent = DefaultAgent
	}
	var out ChatResponse
	err := c.doJSON(ctx, "chat", http.MethodPost, "/api/v1/agent/chat", func(r *resty.Request) {
		r.SetBody(req)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenStream opens the server-push stream for one exchange. The stream is
// bounded only by ctx; the per-request timeout does not apply.
func (c *Client) OpenStream(ctx context.Context, req StreamRequest) (EventStream, error) {
	agent := req.Agent
	if agent == "" {
		agent = DefaultAgent
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/event-stream").
		SetHeader("Cache-Control", "no-cache").
		SetQueryParams(map[string]string{
			"message":   req.Message,
			"thread_id": req.ThreadID,
			"agent":     agent,
		}).
		Get("/api/v1/agent/stream")
	if err != nil {
		return nil, &APIError{Op: "stream", Err: err}
	}

	body := resp.RawBody()
	if resp.IsError() {
		data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		body.Close()
		return nil, &APIError{Op: "stream", StatusCode: resp.StatusCode(), Detail: errorDetail(data)}
	}

	LogDebug("Opened stream on thread %s (agent %s)", req.ThreadID, agent)
	return NewSSEReader(body), nil
}

// ListVectorStores lists the backend's vector stores
func (c *Client) ListVectorStores(ctx context.Context) ([]VectorStore, error) {
	resp, err := c.do(ctx, "list vector stores", http.MethodGet, "/api/v1/vector-stores/", nil)
	if err != nil {
		return nil, err
	}

	body := bytes.TrimSpace(resp.Body())
	var stores []VectorStore
	if len(body) > 0 && body[0] == '{' {
		var wrapped struct {
			Data []VectorStore `json:"data"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, &ParseError{Source: "api", Key: "list vector stores", Err: err}
		}
		return wrapped.Data, nil
	}
	if err := json.Unmarshal(body, &stores); err != nil {
		return nil, &ParseError{Source: "api", Key: "list vector stores", Err: err}
	}
	return stores, nil
}

// CreateVectorStore creates a vector store named name
func (c *Client) CreateVectorStore(ctx context.Context, name string) (*VectorStore, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &ValidationError{Form: "vector store", Missing: []string{"name"}}
	}
	var out VectorStore
	err := c.doJSON(ctx, "create vector store", http.MethodPost, "/api/v1/vector-stores/", func(r *resty.Request) {
		r.SetMultipartFormData(map[string]string{"name": name})
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetVectorStore returns one vector store
func (c *Client) GetVectorStore(ctx context.Context, id string) (*VectorStore, error) {
	var out VectorStore
	err := c.doJSON(ctx, "get vector store", http.MethodGet, "/api/v1/vector-stores/{id}", func(r *resty.Request) {
		r.SetPathParam("id", id)
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteVectorStore deletes a vector store and returns the backend message
func (c *Client) DeleteVectorStore(ctx context.Context, id string) (string, error) {
	return c.doMessage(ctx, "delete vector store", http.MethodDelete, "/api/v1/vector-stores/{id}", func(r *resty.Request) {
		r.SetPathParam("id", id)
	})
}

// SearchVectorStore searches one vector store
func (c *Client) SearchVectorStore(ctx context.Context, id, query string) ([]SearchResult, error) {
	var out []SearchResult
	err := c.doJSON(ctx, "search vector store", http.MethodGet, "/api/v1/vector-stores/{id}/search", func(r *resty.Request) {
		r.SetPathParam("id", id).SetQueryParam("query", query)
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UploadFile uploads the file at path into vector store storeID
func (c *Client) UploadFile(ctx context.Context, storeID, path string) (string, error) {
	return c.doMessage(ctx, "upload file", http.MethodPost, "/api/v1/vector-stores/{id}/files/", func(r *resty.Request) {
		r.SetPathParam("id", storeID).SetFile("file", path)
	})
}

// ListFiles lists every file held by the backend's file service
func (c *Client) ListFiles(ctx context.Context) ([]StoredFile, error) {
	var out []StoredFile
	if err := c.doJSON(ctx, "list files", http.MethodGet, "/api/v1/files/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteFile deletes one file and returns the backend message
func (c *Client) DeleteFile(ctx context.Context, id string) (string, error) {
	return c.doMessage(ctx, "delete file", http.MethodDelete, "/api/v1/files/{id}", func(r *resty.Request) {
		r.SetPathParam("id", id)
	})
}

// ExcelFiles lists the spreadsheets known to the backend, keyed by filename
func (c *Client) ExcelFiles(ctx context.Context) (map[string]ExcelFile, error) {
	var out struct {
		Files map[string]ExcelFile `json:"files"`
	}
	if err := c.doJSON(ctx, "excel files", http.MethodGet, "/api/v1/tools/excel/files", nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// SearchExcel searches every spreadsheet for query. The result shape is
// defined by the backend and returned undecoded.
func (c *Client) SearchExcel(ctx context.Context, query string) (json.RawMessage, error) {
	var out struct {
		Results json.RawMessage `json:"results"`
	}
	err := c.doJSON(ctx, "excel search", http.MethodPost, "/api/v1/tools/excel/search", func(r *resty.Request) {
		r.SetBody(map[string]string{"query": query})
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Results, nil
}

// ReadExcelSheet reads up to maxRows rows of one sheet
func (c *Client) ReadExcelSheet(ctx context.Context, filename, sheet string, maxRows int) ([]Row, error) {
	var out struct {
		Data []Row `json:"data"`
	}
	err := c.doJSON(ctx, "excel read", http.MethodPost, "/api/v1/tools/excel/read", func(r *resty.Request) {
		r.SetBody(map[string]interface{}{"filename": filename, "sheet_name": sheet, "max_rows": maxRows})
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// PreviewExcel returns the first rows of every sheet of filename
func (c *Client) PreviewExcel(ctx context.Context, filename string) (map[string][]Row, error) {
	var out struct {
		Preview map[string][]Row `json:"preview"`
	}
	err := c.doJSON(ctx, "excel preview", http.MethodGet, "/api/v1/tools/excel/preview/{filename}", func(r *resty.Request) {
		r.SetPathParam("filename", filename)
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.Preview, nil
}

// RefreshExcel asks the backend to rescan its spreadsheets
func (c *Client) RefreshExcel(ctx context.Context) (json.RawMessage, error) {
	var out struct {
		Changes json.RawMessage `json:"changes"`
	}
	if err := c.doJSON(ctx, "excel refresh", http.MethodPost, "/api/v1/tools/excel/refresh", nil, &out); err != nil {
		return nil, err
	}
	return out.Changes, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, build func(*resty.Request)) (*resty.Response, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	req := c.rest.R().SetContext(ctx)
	if build != nil {
		build(req)
	}

	LogDebug("%s %s", method, path)
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}
	if resp.IsError() {
		return resp, &APIError{Op: op, StatusCode: resp.StatusCode(), Detail: errorDetail(resp.Body())}
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, build func(*resty.Request), out interface{}) error {
	resp, err := c.do(ctx, op, method, path, build)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &ParseError{Source: "api", Key: op, Err: err}
	}
	return nil
}

func (c *Client) doMessage(ctx context.Context, op, method, path string, build func(*resty.Request)) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, op, method, path, build, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// errorDetail extracts FastAPI's "detail" from an error body, falling back
// to the raw body text.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}
	return string(payload.Detail)
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	return IsAPIStatus(err, http.StatusNotFound)
}

// IsAPIStatus reports whether err is a backend response with the given status
func IsAPIStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
