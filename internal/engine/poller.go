package engine

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/wikibridge/feishu-sync/internal/feishu"
	"github.com/wikibridge/feishu-sync/internal/localfs"
	"github.com/wikibridge/feishu-sync/internal/manifest"
	"github.com/wikibridge/feishu-sync/internal/mdcodec"
)

// Poller periodically walks the wiki looking for documents the manifest does
// not know yet, pairing and subscribing them. It exists because the event
// stream only covers already-subscribed documents.
type Poller struct {
	api       API
	gate      *Gate
	spaceID   string
	rootDir   string
	interval  time.Duration
	subscribe func(ctx context.Context, documentID, fileType string)
	logger    Logger

	inFlight atomic.Bool
}

func NewPoller(
	api API,
	gate *Gate,
	spaceID, rootDir string,
	interval time.Duration,
	subscribe func(ctx context.Context, documentID, fileType string),
	logger Logger,
) *Poller {
	return &Poller{
		api:       api,
		gate:      gate,
		spaceID:   spaceID,
		rootDir:   rootDir,
		interval:  interval,
		subscribe: subscribe,
		logger:    logger,
	}
}

// Run ticks until ctx is cancelled. A zero or negative interval disables the
// poller entirely.
func (p *Poller) Run(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.inFlight.CompareAndSwap(false, true) {
				logf(p.logger, "poll skipped: previous run still in flight")
				continue
			}
			if err := p.pollOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logf(p.logger, "poll failed: %v", err)
			}
			p.inFlight.Store(false)
		}
	}
}

// pollOnce downloads and pairs any document the manifest has not seen. The
// ignore-local window wraps the whole run so the writes it performs do not
// re-enter the processor through the watcher.
func (p *Poller) pollOnce(ctx context.Context) error {
	p.gate.PushIgnoreLocal()
	defer func() {
		p.gate.MarkProcessCompleted()
		p.gate.PopIgnoreLocal()
	}()

	nodes, err := p.api.WalkSpace(ctx, p.spaceID)
	if err != nil {
		return err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].DocumentID < nodes[j].DocumentID })

	p.gate.LockState()
	defer p.gate.UnlockState()
	m := manifest.Read(p.rootDir)

	usedPaths := map[string]bool{}
	localMap, err := localfs.Scan(p.rootDir)
	if err != nil {
		return err
	}
	for relPath := range localMap {
		usedPaths[relPath] = true
	}
	for _, entry := range m.Docs {
		usedPaths[entry.File] = true
	}

	added := 0
	for _, node := range nodes {
		if _, ok := m.Docs[node.DocumentID]; ok {
			continue
		}
		meta, err := p.api.GetDocumentMeta(ctx, node.DocumentID)
		if err != nil {
			if errors.Is(err, feishu.ErrNotFound) {
				continue
			}
			return err
		}
		blocks, err := p.api.GetDocumentBlocks(ctx, node.DocumentID)
		if err != nil {
			return err
		}
		content := mdcodec.BlocksToMarkdown(meta, blocks)

		stem := localfs.SanitizeTitle(meta.Title)
		if stem == "" {
			stem = node.DocumentID
		}
		relPath := localfs.UniqueRelPath(stem, usedPaths)
		if _, err := localfs.WriteFile(p.rootDir, relPath, []byte(content)); err != nil {
			return err
		}
		m.Docs[node.DocumentID] = &manifest.Entry{
			File:       relPath,
			RevisionID: meta.RevisionID,
			Title:      meta.Title,
			FileType:   node.ObjType,
			Hash:       localfs.HashString(content),
		}
		usedPaths[relPath] = true
		added++
		if p.subscribe != nil {
			p.subscribe(ctx, node.DocumentID, node.ObjType)
		}
	}
	if added == 0 {
		return nil
	}
	logf(p.logger, "poll paired %d new document(s)", added)
	return manifest.Write(p.rootDir, m)
}
