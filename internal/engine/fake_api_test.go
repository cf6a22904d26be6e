package engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/wikibridge/feishu-sync/internal/feishu"
	"github.com/wikibridge/feishu-sync/internal/mdcodec"
)

type fakeDoc struct {
	node     feishu.DocNode
	title    string
	revision int
	blocks   []feishu.Block
	inSpace  bool
}

type fakeAPI struct {
	mu           sync.Mutex
	docs         map[string]*fakeDoc
	docCounter   int
	metaCalls    int
	blockCalls   int
	replaced     map[string]int
	subscribed   []string
	deleted      []string
	moved        []string
	failNotFound map[string]bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		docs:         map[string]*fakeDoc{},
		replaced:     map[string]int{},
		failNotFound: map[string]bool{},
	}
}

func (f *fakeAPI) addDoc(docID, title, body string) *fakeDoc {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, blocks := mdcodec.MarkdownToBlocks(body)
	doc := &fakeDoc{
		node: feishu.DocNode{
			NodeToken:  "node_" + docID,
			DocumentID: docID,
			Title:      title,
			ObjType:    "docx",
		},
		title:    title,
		revision: 1,
		blocks:   blocks,
		inSpace:  true,
	}
	f.docs[docID] = doc
	return doc
}

func (f *fakeAPI) bumpRemote(docID, title, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.docs[docID]
	_, blocks := mdcodec.MarkdownToBlocks(body)
	doc.title = title
	doc.node.Title = title
	doc.blocks = blocks
	doc.revision++
}

func (f *fakeAPI) removeDoc(docID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, docID)
}

func (f *fakeAPI) WalkSpace(ctx context.Context, spaceID string) ([]feishu.DocNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var nodes []feishu.DocNode
	for _, doc := range f.docs {
		if doc.inSpace {
			nodes = append(nodes, doc.node)
		}
	}
	return nodes, nil
}

func (f *fakeAPI) GetDocumentMeta(ctx context.Context, documentID string) (feishu.DocMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	doc, ok := f.docs[documentID]
	if !ok || f.failNotFound[documentID] {
		return feishu.DocMeta{}, &feishu.APIError{StatusCode: 404, Code: 1254005, Msg: "not found"}
	}
	return feishu.DocMeta{
		DocumentID: documentID,
		Title:      doc.title,
		RevisionID: strconv.Itoa(doc.revision),
	}, nil
}

func (f *fakeAPI) GetDocumentBlocks(ctx context.Context, documentID string) ([]feishu.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockCalls++
	doc, ok := f.docs[documentID]
	if !ok {
		return nil, &feishu.APIError{StatusCode: 404, Code: 1254005, Msg: "not found"}
	}
	return doc.blocks, nil
}

func (f *fakeAPI) CreateDocument(ctx context.Context, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docCounter++
	docID := fmt.Sprintf("doc_created_%d", f.docCounter)
	f.docs[docID] = &fakeDoc{
		node: feishu.DocNode{
			NodeToken:  "node_" + docID,
			DocumentID: docID,
			Title:      title,
			ObjType:    "docx",
		},
		title:    title,
		revision: 1,
	}
	return docID, nil
}

func (f *fakeAPI) ReplaceDocumentContent(ctx context.Context, documentID string, blocks []feishu.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[documentID]
	if !ok {
		return &feishu.APIError{StatusCode: 404, Code: 1254005, Msg: "not found"}
	}
	doc.blocks = blocks
	doc.revision++
	f.replaced[documentID]++
	return nil
}

func (f *fakeAPI) MoveDocToWiki(ctx context.Context, spaceID, objType, objToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[objToken]
	if !ok {
		return &feishu.APIError{StatusCode: 404, Code: 1254005, Msg: "not found"}
	}
	doc.inSpace = true
	f.moved = append(f.moved, objToken)
	return nil
}

func (f *fakeAPI) SubscribeDocEvents(ctx context.Context, documentID, fileType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, documentID)
	return nil
}

func (f *fakeAPI) DeleteDocument(ctx context.Context, documentID, fileType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[documentID]; !ok {
		return &feishu.APIError{StatusCode: 404, Code: 1254005, Msg: "not found"}
	}
	delete(f.docs, documentID)
	f.deleted = append(f.deleted, documentID)
	return nil
}

func (f *fakeAPI) replaceCount(documentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replaced[documentID]
}

func (f *fakeAPI) blockCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockCalls
}

func (f *fakeAPI) revision(documentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[documentID].revision
}
