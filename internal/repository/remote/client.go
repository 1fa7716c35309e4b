package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"formbuilder/internal/domain"
	models "formbuilder/internal/domain/models/forms"
)

const (
	// DefaultTimeout bounds every request to the document store
	DefaultTimeout = 30 * time.Second

	resourcePath = "/api/resource/"
	pingPath     = "/api/method/ping"

	// maxErrorBody caps how much of an error response ends up in messages
	maxErrorBody = 512
)

// Client talks to a doctype document store over HTTP+JSON.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the store at baseURL. token is sent as a
// bearer token when non-empty.
func NewClient(baseURL, token string) *Client {
	return NewClientWithHTTP(baseURL, token, &http.Client{Timeout: DefaultTimeout})
}

// NewClientWithHTTP creates a client using a caller supplied http.Client
func NewClientWithHTTP(baseURL, token string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// envelope wraps every resource payload: {"data": ...}
type envelope[T any] struct {
	Data T `json:"data"`
}

// ListParams selects fields and ordering for a collection read
type ListParams struct {
	Fields  []string
	OrderBy string
	Limit   int // 0 = all
}

// List reads the collection of docType
func (c *Client) List(ctx context.Context, docType string, params ListParams) ([]models.FormDoc, error) {
	q := url.Values{}
	if len(params.Fields) > 0 {
		fields, err := json.Marshal(params.Fields)
		if err != nil {
			return nil, fmt.Errorf("encode fields: %w", err)
		}
		q.Set("fields", string(fields))
	}
	if params.OrderBy != "" {
		q.Set("order_by", params.OrderBy)
	}
	q.Set("limit_page_length", fmt.Sprint(params.Limit))

	var out envelope[[]models.FormDoc]
	if err := c.do(ctx, http.MethodGet, c.resourceURL(docType, "")+"?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return []models.FormDoc{}, nil
	}
	return out.Data, nil
}

// Get reads one document including child tables
func (c *Client) Get(ctx context.Context, docType, name string) (*models.FormDoc, error) {
	var out envelope[*models.FormDoc]
	if err := c.do(ctx, http.MethodGet, c.resourceURL(docType, name), nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, fmt.Errorf("empty response for %q: %w", name, domain.ErrNotFound)
	}
	return out.Data, nil
}

// Insert creates a document and returns it as stored
func (c *Client) Insert(ctx context.Context, docType string, doc *models.FormDoc) (*models.FormDoc, error) {
	var out envelope[*models.FormDoc]
	if err := c.do(ctx, http.MethodPost, c.resourceURL(docType, ""), doc, &out); err != nil {
		return nil, err
	}
	if out.Data == nil || out.Data.Name == "" {
		return nil, fmt.Errorf("document store returned no name for new %s", docType)
	}
	return out.Data, nil
}

// Update writes the fields present in doc
func (c *Client) Update(ctx context.Context, docType, name string, doc *models.FormPatch) (*models.FormDoc, error) {
	var out envelope[*models.FormDoc]
	if err := c.do(ctx, http.MethodPut, c.resourceURL(docType, name), doc, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Delete(ctx context.Context, docType, name string) error {
	return c.do(ctx, http.MethodDelete, c.resourceURL(docType, name), nil, nil)
}

// Ping calls the ping method and expects "pong"
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodGet, c.baseURL+pingPath, nil, &out); err != nil {
		return err
	}
	if out.Message != "pong" {
		return fmt.Errorf("%w: unexpected ping reply %q", domain.ErrUnavailable, out.Message)
	}
	return nil
}

func (c *Client) resourceURL(docType, name string) string {
	u := c.baseURL + resourcePath + url.PathEscape(docType)
	if name != "" {
		u += "/" + url.PathEscape(name)
	}
	return u
}

func (c *Client) do(ctx context.Context, method, target string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, respBody)
	}
	if dest == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// statusError maps a non-2xx reply onto the domain sentinels
func statusError(status int, body []byte) error {
	msg := errorMessage(body)
	var sentinel error
	switch status {
	case http.StatusBadRequest, http.StatusExpectationFailed, http.StatusUnprocessableEntity:
		sentinel = domain.ErrValidation
	case http.StatusUnauthorized:
		sentinel = domain.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = domain.ErrForbidden
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case http.StatusConflict:
		sentinel = domain.ErrConflict
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		sentinel = domain.ErrUnavailable
	default:
		return fmt.Errorf("document store error (status %d): %s", status, msg)
	}
	return fmt.Errorf("%w (status %d): %s", sentinel, status, msg)
}

// errorMessage pulls a readable message out of a problem document, a
// doctype-style exception reply or falls back to the raw body.
func errorMessage(body []byte) string {
	var reply struct {
		Detail    string `json:"detail"`
		Exception string `json:"exception"`
		Message   any    `json:"message"`
	}
	if err := json.Unmarshal(body, &reply); err == nil {
		switch {
		case reply.Detail != "":
			return reply.Detail
		case reply.Exception != "":
			return reply.Exception
		}
		if s, ok := reply.Message.(string); ok && s != "" {
			return s
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	if text == "" {
		return "empty response"
	}
	return text
}
