package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/wikibridge/feishu-sync/internal/feishu"
	"github.com/wikibridge/feishu-sync/internal/localfs"
	"github.com/wikibridge/feishu-sync/internal/manifest"
	"github.com/wikibridge/feishu-sync/internal/mdcodec"
)

// Counters summarizes one reconciliation pass.
type Counters struct {
	Downloaded    int
	Uploaded      int
	DeletedLocal  int
	DeletedRemote int
	Conflicts     int
	Skipped       int
}

type ReconcilerOptions struct {
	SpaceID string
	RootDir string

	// KeepRemoteOnLocalDelete downloads a document again instead of deleting
	// it when its paired local file is missing.
	KeepRemoteOnLocalDelete bool

	// DryRun reports the actions a pass would take without touching either
	// side or the manifest.
	DryRun bool

	Logger Logger
}

// Reconciler performs one-shot bidirectional sync passes.
type Reconciler struct {
	api  API
	opts ReconcilerOptions
}

func NewReconciler(api API, opts ReconcilerOptions) *Reconciler {
	return &Reconciler{api: api, opts: opts}
}

type remoteDoc struct {
	node feishu.DocNode
	meta feishu.DocMeta
}

// Run executes a full pass. The manifest is persisted only after the pass
// succeeds; a crash mid-pass leaves the previous manifest, which stays
// correct because every per-document action completes its remote side before
// the entry is mutated.
func (r *Reconciler) Run(ctx context.Context) (Counters, error) {
	var counters Counters

	m := manifest.Read(r.opts.RootDir)
	if m.SpaceID != "" && m.SpaceID != r.opts.SpaceID {
		logf(r.opts.Logger, "manifest space %s does not match configured space %s; resetting pairings", m.SpaceID, r.opts.SpaceID)
		m = manifest.New()
	}
	m.SpaceID = r.opts.SpaceID

	localMap, err := localfs.Scan(r.opts.RootDir)
	if err != nil {
		return counters, err
	}

	nodes, err := r.api.WalkSpace(ctx, r.opts.SpaceID)
	if err != nil {
		return counters, err
	}
	remoteMap := map[string]remoteDoc{}
	for _, node := range nodes {
		meta, err := r.api.GetDocumentMeta(ctx, node.DocumentID)
		if err != nil {
			if errors.Is(err, feishu.ErrNotFound) {
				continue
			}
			return counters, err
		}
		remoteMap[node.DocumentID] = remoteDoc{node: node, meta: meta}
	}

	usedPaths := map[string]bool{}
	for relPath := range localMap {
		usedPaths[relPath] = true
	}
	for _, entry := range m.Docs {
		usedPaths[entry.File] = true
	}

	docIDs := make([]string, 0, len(remoteMap))
	for docID := range remoteMap {
		docIDs = append(docIDs, docID)
	}
	sort.Strings(docIDs)

	for _, docID := range docIDs {
		doc := remoteMap[docID]
		if err := r.reconcileRemoteDoc(ctx, m, docID, doc, localMap, usedPaths, &counters); err != nil {
			return counters, err
		}
	}

	if err := r.dropVanishedDocs(m, remoteMap, localMap, &counters); err != nil {
		return counters, err
	}
	if err := r.pairNewLocalFiles(ctx, m, localMap, &counters); err != nil {
		return counters, err
	}

	if !r.opts.DryRun {
		if err := manifest.Write(r.opts.RootDir, m); err != nil {
			return counters, err
		}
	}
	logf(r.opts.Logger, "sync complete: downloaded=%d uploaded=%d deletedLocal=%d deletedRemote=%d conflicts=%d skipped=%d",
		counters.Downloaded, counters.Uploaded, counters.DeletedLocal, counters.DeletedRemote, counters.Conflicts, counters.Skipped)
	return counters, nil
}

func (r *Reconciler) reconcileRemoteDoc(
	ctx context.Context,
	m *manifest.Manifest,
	docID string,
	doc remoteDoc,
	localMap map[string]localfs.FileInfo,
	usedPaths map[string]bool,
	counters *Counters,
) error {
	existing := m.Docs[docID]

	stem := localfs.SanitizeTitle(doc.meta.Title)
	if stem == "" {
		stem = docID
	}
	candidates := make(map[string]bool, len(usedPaths))
	for p := range usedPaths {
		candidates[p] = true
	}
	if existing != nil {
		// A doc keeps its own name; only foreign paths collide.
		delete(candidates, existing.File)
	}
	desiredRel := localfs.UniqueRelPath(stem, candidates)

	if existing == nil {
		if r.opts.DryRun {
			logf(r.opts.Logger, "plan: download %s -> %s", docID, desiredRel)
			counters.Downloaded++
			return nil
		}
		content, err := r.download(ctx, docID, doc.meta)
		if err != nil {
			return err
		}
		if _, err := localfs.WriteFile(r.opts.RootDir, desiredRel, []byte(content)); err != nil {
			return err
		}
		m.Docs[docID] = &manifest.Entry{
			File:       desiredRel,
			RevisionID: doc.meta.RevisionID,
			Title:      doc.meta.Title,
			FileType:   doc.node.ObjType,
			Hash:       localfs.HashString(content),
		}
		usedPaths[desiredRel] = true
		counters.Downloaded++
		return nil
	}

	// Rename before diffing so a title change alone never looks like an edit.
	if existing.File != desiredRel {
		oldRel := existing.File
		if info, ok := localMap[oldRel]; ok {
			newFull := filepath.Join(r.opts.RootDir, filepath.FromSlash(desiredRel))
			if !r.opts.DryRun {
				if err := os.MkdirAll(filepath.Dir(newFull), 0o755); err != nil {
					return err
				}
				if err := os.Rename(info.FullPath, newFull); err != nil {
					return err
				}
			}
			info.FullPath = newFull
			info.RelPath = desiredRel
			delete(localMap, oldRel)
			localMap[desiredRel] = info
		}
		delete(usedPaths, oldRel)
		usedPaths[desiredRel] = true
		existing.File = desiredRel
	}

	fileRel := existing.File
	localInfo, hasLocal := localMap[fileRel]

	if !hasLocal {
		if r.opts.KeepRemoteOnLocalDelete {
			if r.opts.DryRun {
				logf(r.opts.Logger, "plan: restore %s -> %s", docID, fileRel)
				counters.Downloaded++
				return nil
			}
			content, err := r.download(ctx, docID, doc.meta)
			if err != nil {
				return err
			}
			if _, err := localfs.WriteFile(r.opts.RootDir, fileRel, []byte(content)); err != nil {
				return err
			}
			existing.RevisionID = doc.meta.RevisionID
			existing.Title = doc.meta.Title
			existing.FileType = doc.node.ObjType
			existing.Hash = localfs.HashString(content)
			counters.Downloaded++
			return nil
		}
		if r.opts.DryRun {
			logf(r.opts.Logger, "plan: delete remote %s (local %s removed)", docID, fileRel)
			counters.DeletedRemote++
			return nil
		}
		err := r.api.DeleteDocument(ctx, docID, existing.FileType)
		if err != nil && !errors.Is(err, feishu.ErrNotFound) {
			return err
		}
		delete(m.Docs, docID)
		delete(usedPaths, fileRel)
		counters.DeletedRemote++
		return nil
	}

	localChanged := existing.Hash != "" && localInfo.Hash != "" && existing.Hash != localInfo.Hash
	remoteChanged := existing.RevisionID != "" && doc.meta.RevisionID != "" && existing.RevisionID != doc.meta.RevisionID

	switch {
	case localChanged && remoteChanged:
		conflictRel := localfs.ConflictPath(fileRel)
		if r.opts.DryRun {
			logf(r.opts.Logger, "plan: conflict %s -> %s", docID, conflictRel)
			counters.Conflicts++
			return nil
		}
		content, err := r.download(ctx, docID, doc.meta)
		if err != nil {
			return err
		}
		if _, err := localfs.WriteFile(r.opts.RootDir, conflictRel, []byte(content)); err != nil {
			return err
		}
		logf(r.opts.Logger, "conflict on %s: both sides changed, remote copy saved to %s", fileRel, conflictRel)
		counters.Conflicts++

	case remoteChanged:
		if r.opts.DryRun {
			logf(r.opts.Logger, "plan: download %s -> %s", docID, fileRel)
			counters.Downloaded++
			return nil
		}
		content, err := r.download(ctx, docID, doc.meta)
		if err != nil {
			return err
		}
		if _, err := localfs.WriteFile(r.opts.RootDir, fileRel, []byte(content)); err != nil {
			return err
		}
		existing.RevisionID = doc.meta.RevisionID
		existing.Title = doc.meta.Title
		existing.FileType = doc.node.ObjType
		existing.Hash = localfs.HashString(content)
		counters.Downloaded++

	case localChanged:
		if r.opts.DryRun {
			logf(r.opts.Logger, "plan: upload %s <- %s", docID, fileRel)
			counters.Uploaded++
			return nil
		}
		if err := r.upload(ctx, docID, localInfo); err != nil {
			return err
		}
		meta, err := r.api.GetDocumentMeta(ctx, docID)
		if err != nil {
			return err
		}
		existing.RevisionID = meta.RevisionID
		existing.Title = meta.Title
		existing.FileType = doc.node.ObjType
		existing.Hash = localInfo.Hash
		counters.Uploaded++

	default:
		existing.RevisionID = doc.meta.RevisionID
		existing.Title = doc.meta.Title
		existing.FileType = doc.node.ObjType
		counters.Skipped++
	}
	return nil
}

// dropVanishedDocs removes pairings whose remote document no longer exists.
func (r *Reconciler) dropVanishedDocs(
	m *manifest.Manifest,
	remoteMap map[string]remoteDoc,
	localMap map[string]localfs.FileInfo,
	counters *Counters,
) error {
	var gone []string
	for docID := range m.Docs {
		if _, ok := remoteMap[docID]; !ok {
			gone = append(gone, docID)
		}
	}
	sort.Strings(gone)
	for _, docID := range gone {
		entry := m.Docs[docID]
		if info, ok := localMap[entry.File]; ok {
			if r.opts.DryRun {
				logf(r.opts.Logger, "plan: delete local %s (remote %s gone)", entry.File, docID)
			} else {
				if err := os.Remove(info.FullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
					return err
				}
				delete(localMap, entry.File)
			}
		}
		if !r.opts.DryRun {
			delete(m.Docs, docID)
		}
		counters.DeletedLocal++
	}
	return nil
}

// pairNewLocalFiles creates remote documents for local files with no pairing.
func (r *Reconciler) pairNewLocalFiles(
	ctx context.Context,
	m *manifest.Manifest,
	localMap map[string]localfs.FileInfo,
	counters *Counters,
) error {
	paired := map[string]bool{}
	for _, entry := range m.Docs {
		paired[entry.File] = true
	}
	var unpaired []string
	for relPath := range localMap {
		if !paired[relPath] {
			unpaired = append(unpaired, relPath)
		}
	}
	sort.Strings(unpaired)

	for _, relPath := range unpaired {
		info := localMap[relPath]
		if r.opts.DryRun {
			logf(r.opts.Logger, "plan: create remote document from %s", relPath)
			counters.Uploaded++
			continue
		}
		data, err := os.ReadFile(info.FullPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		title, blocks := mdcodec.MarkdownToBlocks(string(data))
		docID, err := r.api.CreateDocument(ctx, title)
		if err != nil {
			return err
		}
		if title != "" {
			if meta, err := r.api.GetDocumentMeta(ctx, docID); err == nil && meta.Title == "" {
				// Titled creation was refused; carry the title as a heading.
				blocks = append([]feishu.Block{headingBlock(title)}, blocks...)
			}
		}
		if err := r.api.ReplaceDocumentContent(ctx, docID, blocks); err != nil {
			return err
		}
		if err := r.api.MoveDocToWiki(ctx, r.opts.SpaceID, "docx", docID); err != nil {
			return err
		}
		meta, err := r.api.GetDocumentMeta(ctx, docID)
		if err != nil {
			return err
		}
		m.Docs[docID] = &manifest.Entry{
			File:       relPath,
			RevisionID: meta.RevisionID,
			Title:      title,
			FileType:   "docx",
			Hash:       info.Hash,
		}
		counters.Uploaded++
	}
	return nil
}

func (r *Reconciler) download(ctx context.Context, docID string, meta feishu.DocMeta) (string, error) {
	blocks, err := r.api.GetDocumentBlocks(ctx, docID)
	if err != nil {
		return "", err
	}
	return mdcodec.BlocksToMarkdown(meta, blocks), nil
}

func (r *Reconciler) upload(ctx context.Context, docID string, info localfs.FileInfo) error {
	data, err := os.ReadFile(info.FullPath)
	if err != nil {
		return err
	}
	_, blocks := mdcodec.MarkdownToBlocks(string(data))
	return r.api.ReplaceDocumentContent(ctx, docID, blocks)
}

func headingBlock(title string) feishu.Block {
	return feishu.Block{
		BlockType: feishu.BlockTypeHeading1,
		Heading1: &feishu.TextBlock{
			Elements: []feishu.TextElement{{TextRun: &feishu.TextRun{Content: title}}},
		},
	}
}
