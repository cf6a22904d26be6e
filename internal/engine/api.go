// Package engine drives bidirectional synchronization between a wiki space
// and a local directory of Markdown files.
package engine

import (
	"context"

	"github.com/wikibridge/feishu-sync/internal/feishu"
)

// API is the remote surface the engine consumes. *feishu.Client satisfies it;
// tests substitute fakes.
type API interface {
	WalkSpace(ctx context.Context, spaceID string) ([]feishu.DocNode, error)
	GetDocumentMeta(ctx context.Context, documentID string) (feishu.DocMeta, error)
	GetDocumentBlocks(ctx context.Context, documentID string) ([]feishu.Block, error)
	CreateDocument(ctx context.Context, title string) (string, error)
	ReplaceDocumentContent(ctx context.Context, documentID string, blocks []feishu.Block) error
	MoveDocToWiki(ctx context.Context, spaceID, objType, objToken string) error
	SubscribeDocEvents(ctx context.Context, documentID, fileType string) error
	DeleteDocument(ctx context.Context, documentID, fileType string) error
}

type Logger interface {
	Printf(format string, args ...any)
}

func logf(logger Logger, format string, args ...any) {
	if logger == nil {
		return
	}
	logger.Printf(format, args...)
}
