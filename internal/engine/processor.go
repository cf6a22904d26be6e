package engine

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wikibridge/feishu-sync/internal/feishu"
	"github.com/wikibridge/feishu-sync/internal/localfs"
	"github.com/wikibridge/feishu-sync/internal/manifest"
	"github.com/wikibridge/feishu-sync/internal/mdcodec"
)

// Action is one kind of per-document work.
type Action string

const (
	ActionRefresh Action = "refresh"
	ActionUpload  Action = "upload"
)

// Remote event types forwarded by the dispatcher.
const (
	EventFileCreatedInFolder = "drive.file.created_in_folder_v1"
	EventFileEdit            = "drive.file.edit_v1"
	EventFileTitleUpdated    = "drive.file.title_updated_v1"
	EventFileTrashed         = "drive.file.trashed_v1"
)

// Built-in windows of the change pipeline.
const (
	DefaultDebounce          = 3 * time.Second
	DefaultDedupeWindow      = 10 * time.Minute
	DefaultLocalIgnoreWindow = 2 * time.Second
)

type ProcessorOptions struct {
	RootDir string

	Debounce          time.Duration
	DedupeWindow      time.Duration
	LocalIgnoreWindow time.Duration

	// FullSync is invoked when the processor needs to escalate: trashed or
	// folder-level events, unknown pairings, or a not-found failure mid-action.
	FullSync func(reason string)

	Logger Logger
}

type procMsg struct {
	// exactly one of these is set
	remote *remoteEventMsg
	local  *localChangeMsg
	run    *runActionMsg
}

type remoteEventMsg struct {
	eventType  string
	documentID string
	fileType   string
}

type localChangeMsg struct {
	relPath string
	kind    string
	modTime time.Time
}

type runActionMsg struct {
	jobID      string
	documentID string
	action     Action
}

type pendingDoc struct {
	lastEventAt time.Time
	lastAction  Action
	timer       *time.Timer
	jobID       string
}

// Processor serializes per-document work coming from the event sources. A
// single consumer goroutine owns all state, so no two actions for the same
// document (or any document) ever overlap.
type Processor struct {
	api  API
	gate *Gate
	opts ProcessorOptions

	inbox   chan procMsg
	pending map[string]*pendingDoc

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

func NewProcessor(api API, gate *Gate, opts ProcessorOptions) *Processor {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.DedupeWindow <= 0 {
		opts.DedupeWindow = DefaultDedupeWindow
	}
	if opts.LocalIgnoreWindow <= 0 {
		opts.LocalIgnoreWindow = DefaultLocalIgnoreWindow
	}
	return &Processor{
		api:     api,
		gate:    gate,
		opts:    opts,
		inbox:   make(chan procMsg, 256),
		pending: map[string]*pendingDoc{},
		stopped: make(chan struct{}),
	}
}

// Start launches the consumer. It runs until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.consume(ctx)
	}()
}

// Stop signals the consumer to exit and waits for it to return. Messages
// still queued in the inbox may be left unprocessed.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
	p.wg.Wait()
}

// HandleEvent accepts a remote push event.
func (p *Processor) HandleEvent(eventType, documentID, fileType string) {
	p.post(procMsg{remote: &remoteEventMsg{
		eventType:  eventType,
		documentID: documentID,
		fileType:   fileType,
	}})
}

// HandleLocalChange accepts a watcher notification.
func (p *Processor) HandleLocalChange(relPath, kind string, modTime time.Time) {
	p.post(procMsg{local: &localChangeMsg{relPath: relPath, kind: kind, modTime: modTime}})
}

func (p *Processor) post(msg procMsg) {
	select {
	case p.inbox <- msg:
	case <-p.stopped:
	}
}

func (p *Processor) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		case msg := <-p.inbox:
			switch {
			case msg.remote != nil:
				p.onRemoteEvent(*msg.remote)
			case msg.local != nil:
				p.onLocalChange(*msg.local)
			case msg.run != nil:
				p.onRunAction(ctx, *msg.run)
			}
		}
	}
}

func (p *Processor) onRemoteEvent(ev remoteEventMsg) {
	switch ev.eventType {
	case EventFileTrashed, EventFileCreatedInFolder:
		p.escalate("event " + ev.eventType)
		return
	}
	if ev.documentID == "" {
		return
	}
	p.schedule(ev.documentID, ActionRefresh)
}

func (p *Processor) onLocalChange(ch localChangeMsg) {
	if p.gate.IgnoreLocal() {
		return
	}
	if ch.kind == "remove" {
		p.escalate("local delete " + ch.relPath)
		return
	}

	p.gate.LockState()
	m := manifest.Read(p.opts.RootDir)
	docID, entry := m.EntryByFile(ch.relPath)
	p.gate.UnlockState()

	if entry != nil && p.gate.WithinIgnoreWindow(ch.modTime, p.opts.LocalIgnoreWindow) {
		if data, err := os.ReadFile(localfs.FilePath(p.opts.RootDir, ch.relPath)); err == nil && localfs.HashBytes(data) == entry.Hash {
			// Echo of the engine's own write.
			return
		}
	}
	if entry == nil {
		p.escalate("unpaired local change " + ch.relPath)
		return
	}
	p.schedule(docID, ActionUpload)
}

// schedule applies dedupe and debounce before arming a timer that posts the
// action back into the inbox. A repeat of a pending identical action extends
// the debounce instead of stacking; a repeat shortly after the action already
// ran is dropped.
func (p *Processor) schedule(documentID string, action Action) {
	now := time.Now()
	state := p.pending[documentID]
	if state != nil && state.lastAction == action && now.Sub(state.lastEventAt) < p.opts.DedupeWindow {
		state.lastEventAt = now
		if state.timer != nil {
			state.timer.Reset(p.opts.Debounce)
		}
		return
	}
	if state == nil {
		state = &pendingDoc{}
		p.pending[documentID] = state
	}
	if state.timer != nil {
		state.timer.Stop()
	}
	state.lastEventAt = now
	state.lastAction = action
	state.jobID = uuid.NewString()
	jobID := state.jobID
	state.timer = time.AfterFunc(p.opts.Debounce, func() {
		p.post(procMsg{run: &runActionMsg{jobID: jobID, documentID: documentID, action: action}})
	})
}

func (p *Processor) onRunAction(ctx context.Context, run runActionMsg) {
	state := p.pending[run.documentID]
	if state == nil || state.jobID != run.jobID {
		return
	}
	state.timer = nil

	var err error
	switch run.action {
	case ActionRefresh:
		err = p.refreshDoc(ctx, run.documentID)
	case ActionUpload:
		err = p.uploadDoc(ctx, run.documentID)
	}
	p.gate.MarkProcessCompleted()
	if err != nil {
		if errors.Is(err, feishu.ErrNotFound) || errors.Is(err, errUnknownPairing) {
			p.escalate("fallback after " + string(run.action) + " of " + run.documentID)
			return
		}
		logf(p.opts.Logger, "%s %s failed: %v", run.action, run.documentID, err)
	}
}

var errUnknownPairing = errors.New("document has no manifest pairing")

// refreshDoc pulls one document down, writing the file only when its content
// actually changed.
func (p *Processor) refreshDoc(ctx context.Context, documentID string) error {
	meta, err := p.api.GetDocumentMeta(ctx, documentID)
	if err != nil {
		return err
	}
	blocks, err := p.api.GetDocumentBlocks(ctx, documentID)
	if err != nil {
		return err
	}
	content := mdcodec.BlocksToMarkdown(meta, blocks)
	hash := localfs.HashString(content)

	p.gate.LockState()
	defer p.gate.UnlockState()
	m := manifest.Read(p.opts.RootDir)
	entry := m.Docs[documentID]
	if entry == nil {
		return errUnknownPairing
	}
	if entry.Hash == hash {
		entry.RevisionID = meta.RevisionID
		entry.Title = meta.Title
		return manifest.Write(p.opts.RootDir, m)
	}

	p.gate.PushIgnoreLocal()
	_, writeErr := localfs.WriteFile(p.opts.RootDir, entry.File, []byte(content))
	p.gate.PopIgnoreLocal()
	if writeErr != nil {
		return writeErr
	}
	entry.RevisionID = meta.RevisionID
	entry.Title = meta.Title
	entry.Hash = hash
	return manifest.Write(p.opts.RootDir, m)
}

// uploadDoc pushes one locally edited document, the same way the reconciler's
// only-local-changed branch does.
func (p *Processor) uploadDoc(ctx context.Context, documentID string) error {
	p.gate.LockState()
	defer p.gate.UnlockState()
	m := manifest.Read(p.opts.RootDir)
	entry := m.Docs[documentID]
	if entry == nil {
		return errUnknownPairing
	}
	data, err := os.ReadFile(localfs.FilePath(p.opts.RootDir, entry.File))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errUnknownPairing
		}
		return err
	}
	_, blocks := mdcodec.MarkdownToBlocks(string(data))
	if err := p.api.ReplaceDocumentContent(ctx, documentID, blocks); err != nil {
		return err
	}
	meta, err := p.api.GetDocumentMeta(ctx, documentID)
	if err != nil {
		return err
	}
	entry.RevisionID = meta.RevisionID
	entry.Title = meta.Title
	entry.Hash = localfs.HashBytes(data)
	return manifest.Write(p.opts.RootDir, m)
}

func (p *Processor) escalate(reason string) {
	if p.opts.FullSync == nil {
		return
	}
	p.opts.FullSync(strings.TrimSpace(reason))
}
