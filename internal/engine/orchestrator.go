package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wikibridge/feishu-sync/internal/manifest"
)

type OrchestratorOptions struct {
	SpaceID string
	RootDir string

	InitialSync             bool
	PollInterval            time.Duration
	KeepRemoteOnLocalDelete bool

	// EventEndpoint is the push-stream URL; empty disables the dispatcher.
	EventEndpoint string
	Token         string

	Logger Logger
}

// Orchestrator wires the processor and the event sources together and owns
// the escalation path back into the reconciler.
type Orchestrator struct {
	api  API
	opts OrchestratorOptions
	gate *Gate

	processor  *Processor
	reconciler *Reconciler

	subMu      sync.Mutex
	subscribed map[string]bool

	fullSyncMu sync.Mutex
}

func NewOrchestrator(api API, opts OrchestratorOptions) *Orchestrator {
	o := &Orchestrator{
		api:        api,
		opts:       opts,
		gate:       &Gate{},
		subscribed: map[string]bool{},
	}
	o.reconciler = NewReconciler(api, ReconcilerOptions{
		SpaceID:                 opts.SpaceID,
		RootDir:                 opts.RootDir,
		KeepRemoteOnLocalDelete: opts.KeepRemoteOnLocalDelete,
		Logger:                  opts.Logger,
	})
	o.processor = NewProcessor(api, o.gate, ProcessorOptions{
		RootDir:  opts.RootDir,
		FullSync: o.requestFullSync,
		Logger:   opts.Logger,
	})
	return o
}

// Run starts every component and blocks until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.opts.InitialSync {
		if err := o.runFullSync(ctx, "startup"); err != nil {
			return err
		}
	}

	o.subscribeManifested(ctx)

	o.processor.Start(ctx)
	defer o.processor.Stop()

	var wg sync.WaitGroup

	poller := NewPoller(o.api, o.gate, o.opts.SpaceID, o.opts.RootDir, o.opts.PollInterval, o.subscribeDoc, o.opts.Logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	watcher, err := NewWatcher(o.opts.RootDir, o.processor, o.opts.Logger)
	if err != nil {
		return err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()

	if o.opts.EventEndpoint != "" {
		dispatcher := NewDispatcher(DispatcherOptions{
			Endpoint:    o.opts.EventEndpoint,
			Token:       o.opts.Token,
			Logger:      o.opts.Logger,
			OnReconnect: o.subscribeManifested,
		})
		forward := func(eventType, documentID, fileType string) {
			o.processor.HandleEvent(eventType, documentID, fileType)
		}
		dispatcher.Register(EventFileCreatedInFolder, forward)
		dispatcher.Register(EventFileEdit, forward)
		dispatcher.Register(EventFileTitleUpdated, forward)
		dispatcher.Register(EventFileTrashed, forward)
		wg.Add(1)
		go func() {
			defer wg.Done()
			dispatcher.Run(ctx)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// requestFullSync is the processor's escalation hook.
func (o *Orchestrator) requestFullSync(reason string) {
	logf(o.opts.Logger, "full sync requested: %s", reason)
	if err := o.runFullSync(context.Background(), reason); err != nil {
		logf(o.opts.Logger, "full sync (%s) failed: %v", reason, err)
	}
}

// runFullSync executes one reconciliation pass with watcher echoes
// suppressed. Passes never overlap; per-doc actions queued meanwhile are
// superseded by the pass re-deriving state from scratch.
func (o *Orchestrator) runFullSync(ctx context.Context, reason string) error {
	o.fullSyncMu.Lock()
	defer o.fullSyncMu.Unlock()

	o.gate.PushIgnoreLocal()
	o.gate.LockState()
	defer func() {
		o.gate.MarkProcessCompleted()
		o.gate.UnlockState()
		o.gate.PopIgnoreLocal()
	}()

	logf(o.opts.Logger, "reconciling (%s)", reason)
	_, err := o.reconciler.Run(ctx)
	if err != nil {
		return err
	}
	o.subscribeManifestedLocked(ctx)
	return nil
}

// subscribeManifested registers every paired document for push events.
// Each document is subscribed at most once per process lifetime.
func (o *Orchestrator) subscribeManifested(ctx context.Context) {
	o.gate.LockState()
	defer o.gate.UnlockState()
	o.subscribeManifestedLocked(ctx)
}

func (o *Orchestrator) subscribeManifestedLocked(ctx context.Context) {
	m := manifest.Read(o.opts.RootDir)
	docIDs := make([]string, 0, len(m.Docs))
	for docID := range m.Docs {
		docIDs = append(docIDs, docID)
	}
	sort.Strings(docIDs)
	for _, docID := range docIDs {
		o.subscribeDoc(ctx, docID, m.Docs[docID].FileType)
	}
}

func (o *Orchestrator) subscribeDoc(ctx context.Context, documentID, fileType string) {
	o.subMu.Lock()
	already := o.subscribed[documentID]
	if !already {
		o.subscribed[documentID] = true
	}
	o.subMu.Unlock()
	if already {
		return
	}
	if err := o.api.SubscribeDocEvents(ctx, documentID, fileType); err != nil {
		logf(o.opts.Logger, "subscribe %s failed: %v", documentID, err)
		o.subMu.Lock()
		delete(o.subscribed, documentID)
		o.subMu.Unlock()
	}
}
