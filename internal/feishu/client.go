// Package feishu is a typed client for the open-platform document and wiki
// HTTP surface.
package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("document not found")

// APIError is a non-retriable failure: either a non-2xx HTTP status or a
// non-zero application code in the response envelope.
type APIError struct {
	StatusCode int
	Code       int
	Msg        string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("api error %d (http %d): %s", e.Code, e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Msg)
}

func (e *APIError) Is(target error) bool {
	if target != ErrNotFound {
		return false
	}
	return e.StatusCode == http.StatusNotFound || isNotFoundCode(e.Code)
}

// Application codes the document API returns for missing or trashed objects.
func isNotFoundCode(code int) bool {
	switch code {
	case 1254005, 1254040, 230005:
		return true
	}
	return false
}

const (
	defaultBaseURL = "https://open.feishu.cn/open-apis"

	wikiNodePageSize = 50
	blockPageSize    = 100
	batchLimit       = 100
)

type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 8 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		httpClient: httpClient,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// listSpaceNodes returns one page of children under parentNodeToken (the space
// root when empty).
func (c *Client) listSpaceNodes(ctx context.Context, spaceID, parentNodeToken, pageToken string) ([]wikiNode, string, bool, error) {
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(wikiNodePageSize))
	if parentNodeToken != "" {
		q.Set("parent_node_token", parentNodeToken)
	}
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	var data struct {
		Items     []wikiNode `json:"items"`
		PageToken string     `json:"page_token"`
		HasMore   bool       `json:"has_more"`
	}
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/wiki/v2/spaces/%s/nodes?%s", url.PathEscape(spaceID), q.Encode()), nil, &data)
	if err != nil {
		return nil, "", false, err
	}
	return data.Items, data.PageToken, data.HasMore, nil
}

func (c *Client) GetDocumentMeta(ctx context.Context, documentID string) (DocMeta, error) {
	var data struct {
		Document struct {
			DocumentID string `json:"document_id"`
			RevisionID int64  `json:"revision_id"`
			Title      string `json:"title"`
		} `json:"document"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/docx/v1/documents/"+url.PathEscape(documentID), nil, &data)
	if err != nil {
		return DocMeta{}, err
	}
	return DocMeta{
		DocumentID: data.Document.DocumentID,
		Title:      data.Document.Title,
		RevisionID: strconv.FormatInt(data.Document.RevisionID, 10),
	}, nil
}

// GetDocumentBlocks fetches every block of the document, following page
// tokens until the listing is exhausted.
func (c *Client) GetDocumentBlocks(ctx context.Context, documentID string) ([]Block, error) {
	var blocks []Block
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("page_size", strconv.Itoa(blockPageSize))
		q.Set("document_revision_id", "-1")
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}
		var data struct {
			Items     []Block `json:"items"`
			PageToken string  `json:"page_token"`
			HasMore   bool    `json:"has_more"`
		}
		err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/docx/v1/documents/%s/blocks?%s", url.PathEscape(documentID), q.Encode()), nil, &data)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, data.Items...)
		if !data.HasMore || data.PageToken == "" {
			break
		}
		pageToken = data.PageToken
	}
	return blocks, nil
}

// CreateDocument creates a standalone document. Some tenants reject titled
// creation; a failed titled request is retried once without a title, and the
// caller then prepends a heading block instead.
func (c *Client) CreateDocument(ctx context.Context, title string) (string, error) {
	body := map[string]any{}
	if title != "" {
		body["title"] = title
	}
	var data struct {
		Document struct {
			DocumentID string `json:"document_id"`
		} `json:"document"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/docx/v1/documents", body, &data)
	if err != nil && title != "" {
		err = c.doJSON(ctx, http.MethodPost, "/docx/v1/documents", map[string]any{}, &data)
	}
	if err != nil {
		return "", err
	}
	return data.Document.DocumentID, nil
}

// AppendBlockChildren appends children under parentID at index and returns
// the created blocks. Callers keep batches within the API's limit of 100.
func (c *Client) AppendBlockChildren(ctx context.Context, documentID, parentID string, index int, children []Block) ([]Block, error) {
	body := map[string]any{
		"index":    index,
		"children": children,
	}
	var data struct {
		Children []Block `json:"children"`
	}
	path := fmt.Sprintf("/docx/v1/documents/%s/blocks/%s/children", url.PathEscape(documentID), url.PathEscape(parentID))
	if err := c.doJSON(ctx, http.MethodPost, path, body, &data); err != nil {
		return nil, err
	}
	return data.Children, nil
}

// BatchDeleteChildren removes the children of parentID in [startIndex, endIndex).
func (c *Client) BatchDeleteChildren(ctx context.Context, documentID, parentID string, startIndex, endIndex int) error {
	body := map[string]any{
		"start_index": startIndex,
		"end_index":   endIndex,
	}
	path := fmt.Sprintf("/docx/v1/documents/%s/blocks/%s/children/batch_delete?document_revision_id=-1",
		url.PathEscape(documentID), url.PathEscape(parentID))
	return c.doJSON(ctx, http.MethodDelete, path, body, nil)
}

// MoveDocToWiki files a standalone document under the wiki space root.
func (c *Client) MoveDocToWiki(ctx context.Context, spaceID, objType, objToken string) error {
	body := map[string]any{
		"obj_type":  objType,
		"obj_token": objToken,
	}
	path := fmt.Sprintf("/wiki/v2/spaces/%s/nodes/move_docs_to_wiki", url.PathEscape(spaceID))
	return c.doJSON(ctx, http.MethodPost, path, body, nil)
}

// SubscribeDocEvents registers the document for drive.file.* push events.
func (c *Client) SubscribeDocEvents(ctx context.Context, documentID, fileType string) error {
	if fileType == "" {
		fileType = "docx"
	}
	path := fmt.Sprintf("/drive/v1/files/%s/subscribe?file_type=%s", url.PathEscape(documentID), url.QueryEscape(fileType))
	return c.doJSON(ctx, http.MethodPost, path, nil, nil)
}

// DeleteDocument removes the remote document, dispatching on fileType.
func (c *Client) DeleteDocument(ctx context.Context, documentID, fileType string) error {
	if fileType == "" {
		fileType = "docx"
	}
	path := fmt.Sprintf("/drive/v1/files/%s?type=%s", url.PathEscape(documentID), url.QueryEscape(fileType))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("X-Request-Id", uuid.NewString())
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json; charset=utf-8")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payloadBytes, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		var env envelope
		if err := json.Unmarshal(payloadBytes, &env); err != nil || len(payloadBytes) == 0 {
			return &APIError{
				StatusCode: resp.StatusCode,
				Msg:        fmt.Sprintf("invalid response body: %s", truncateBody(payloadBytes)),
			}
		}
		if env.Code != 0 {
			return &APIError{StatusCode: resp.StatusCode, Code: env.Code, Msg: env.Msg}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &APIError{StatusCode: resp.StatusCode, Msg: env.Msg}
		}
		if out == nil || len(env.Data) == 0 {
			return nil
		}
		return json.Unmarshal(env.Data, out)
	}
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfter(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if ts, err := time.Parse(time.RFC1123, header); err == nil {
		delta := time.Until(ts)
		if delta > 0 {
			return delta
		}
	}
	return 0
}

func truncateBody(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
