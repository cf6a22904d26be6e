package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(serverURL string) *Client {
	return NewClient(Options{
		BaseURL:    serverURL,
		Token:      "t-token",
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		MaxDelay:   8 * time.Millisecond,
	})
}

func TestClientRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"code":99991400,"msg":"rate limited"}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer t-token" {
			t.Errorf("expected bearer token header, got %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"code":0,"msg":"success","data":{"document":{"document_id":"doc_1","revision_id":7,"title":"Hello"}}}`))
	}))
	defer server.Close()

	meta, err := testClient(server.URL).GetDocumentMeta(context.Background(), "doc_1")
	if err != nil {
		t.Fatalf("expected retry to recover from 429, got %v", err)
	}
	if meta.RevisionID != "7" || meta.Title != "Hello" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", atomic.LoadInt32(&calls))
	}
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":99991400,"msg":"rate limited"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetDocumentMeta(context.Background(), "doc_1")
	if err == nil {
		t.Fatalf("expected failure after retry exhaustion")
	}
	if got := atomic.LoadInt32(&calls); got != 6 {
		t.Fatalf("expected 1 initial call + 5 retries, got %d", got)
	}
}

func TestClientNonZeroCodeFailsImmediately(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"code":1254005,"msg":"document deleted"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetDocumentMeta(context.Background(), "doc_gone")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 1254005 || apiErr.Msg != "document deleted" {
		t.Fatalf("expected server code and message preserved, got %+v", apiErr)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted-document code to match ErrNotFound")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected no retries on permanent error, got %d calls", atomic.LoadInt32(&calls))
	}
}

func TestClientNonJSONBodyCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetDocumentMeta(context.Background(), "doc_1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status 502 in diagnostic, got %d", apiErr.StatusCode)
	}
}

func TestGetDocumentBlocksFollowsPageTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("document_revision_id") != "-1" {
			t.Errorf("expected document_revision_id=-1, got %q", r.URL.Query().Get("document_revision_id"))
		}
		if r.URL.Query().Get("page_size") != "100" {
			t.Errorf("expected page_size=100, got %q", r.URL.Query().Get("page_size"))
		}
		switch r.URL.Query().Get("page_token") {
		case "":
			_, _ = w.Write([]byte(`{"code":0,"data":{"items":[{"block_id":"b1","block_type":1}],"page_token":"p2","has_more":true}}`))
		case "p2":
			_, _ = w.Write([]byte(`{"code":0,"data":{"items":[{"block_id":"b2","block_type":2}],"page_token":"","has_more":false}}`))
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("page_token"))
		}
	}))
	defer server.Close()

	blocks, err := testClient(server.URL).GetDocumentBlocks(context.Background(), "doc_1")
	if err != nil {
		t.Fatalf("list blocks failed: %v", err)
	}
	if len(blocks) != 2 || blocks[0].BlockID != "b1" || blocks[1].BlockID != "b2" {
		t.Fatalf("expected both pages concatenated, got %+v", blocks)
	}
}

func TestCreateDocumentRetriesUntitledOnTitleFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if atomic.AddInt32(&calls, 1) == 1 {
			if body["title"] != "Hello" {
				t.Errorf("expected first attempt with title, got %v", body)
			}
			_, _ = w.Write([]byte(`{"code":230002,"msg":"title not allowed"}`))
			return
		}
		if _, ok := body["title"]; ok {
			t.Errorf("expected retry without title, got %v", body)
		}
		_, _ = w.Write([]byte(`{"code":0,"data":{"document":{"document_id":"doc_new"}}}`))
	}))
	defer server.Close()

	docID, err := testClient(server.URL).CreateDocument(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if docID != "doc_new" {
		t.Fatalf("expected doc_new, got %s", docID)
	}
}

func TestWalkSpaceDescendsOnlyIntoNodesWithChildren(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page_size") != "50" {
			t.Errorf("expected page_size=50, got %q", r.URL.Query().Get("page_size"))
		}
		switch r.URL.Query().Get("parent_node_token") {
		case "":
			_, _ = w.Write([]byte(`{"code":0,"data":{"items":[
				{"node_token":"n1","obj_token":"doc_1","obj_type":"docx","title":"Top","has_child":true},
				{"node_token":"n2","obj_token":"sheet_1","obj_type":"sheet","title":"Numbers","has_child":false}
			],"has_more":false}}`))
		case "n1":
			_, _ = w.Write([]byte(`{"code":0,"data":{"items":[
				{"node_token":"n3","obj_token":"doc_2","obj_type":"doc","title":"Child","has_child":false}
			],"has_more":false}}`))
		default:
			t.Errorf("unexpected parent %q", r.URL.Query().Get("parent_node_token"))
		}
	}))
	defer server.Close()

	docs, err := testClient(server.URL).WalkSpace(context.Background(), "space_1")
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents (sheet filtered), got %+v", docs)
	}
	byID := map[string]DocNode{}
	for _, d := range docs {
		byID[d.DocumentID] = d
	}
	if byID["doc_1"].ObjType != "docx" || byID["doc_2"].ObjType != "doc" {
		t.Fatalf("expected both doc types present, got %+v", byID)
	}
}
