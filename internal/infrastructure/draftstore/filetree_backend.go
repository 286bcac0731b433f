package draftstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/storage"
	"go.uber.org/zap"
)

const manifestName = "manifest.json"

// maxPlainIDBytes bounds ids stored as plain hex; longer ids are hashed so the
// directory name stays under common filesystem limits
const maxPlainIDBytes = 100

// dirName maps an id onto a directory name. Short ids are hex encoded, which is
// reversible and case-insensitive safe. Long ids become "h" + sha256, whose odd
// length never collides with a hex encoding.
func dirName(id string) string {
	if id == "" {
		return ""
	}
	if len(id) <= maxPlainIDBytes {
		return hex.EncodeToString([]byte(id))
	}
	sum := sha256.Sum256([]byte(id))
	return "h" + hex.EncodeToString(sum[:])
}

// manifest is the per-draft index stored next to the blobs
type manifest struct {
	DraftID  string                               `json:"draft_id"`
	Expenses map[string][]entity.DraftReceiptMeta `json:"expenses"`
}

// FileTreeBackend stores blobs at <root>/<draft>/<expense>/<receipt>.bin
// with a manifest.json per draft directory. Directory names come from dirName,
// and the manifest records the raw draft id it belongs to.
type FileTreeBackend struct {
	root    string
	files   port.FileStorage
	folders port.FolderManager
	logger  *zap.Logger
}

// NewFileTreeBackend creates the file tree strategy rooted at root
func NewFileTreeBackend(root string, logger *zap.Logger) *FileTreeBackend {
	return &FileTreeBackend{
		root:    root,
		files:   storage.NewLocalFileStorage(root, logger),
		folders: storage.NewLocalFolderManager(root, logger),
		logger:  logger,
	}
}

// Name implements port.DraftBackend
func (b *FileTreeBackend) Name() string { return "filetree" }

// Available checks that root is writable
func (b *FileTreeBackend) Available(ctx context.Context) error {
	if err := os.MkdirAll(b.root, 0755); err != nil {
		return fmt.Errorf("failed to create draft root: %w", err)
	}
	marker := ".writable"
	if err := b.files.Save(ctx, marker, []byte("ok")); err != nil {
		return fmt.Errorf("draft root not writable: %w", err)
	}
	return b.files.Delete(ctx, marker)
}

// Replace implements port.DraftBackend. Prior blobs of the expense are
// removed before the new generation is written.
func (b *FileTreeBackend) Replace(ctx context.Context, draftID, expenseID string, blobs []entity.DraftBlob) error {
	draftDir, expenseDir, err := b.dirs(draftID, expenseID)
	if err != nil {
		return err
	}

	m, err := b.readManifest(ctx, draftID)
	if err != nil {
		return err
	}

	for _, prior := range m.Expenses[expenseID] {
		if err := b.files.Delete(ctx, blobPath(draftDir, expenseDir, prior.ID)); err != nil {
			return err
		}
	}
	delete(m.Expenses, expenseID)

	metas := make([]entity.DraftReceiptMeta, 0, len(blobs))
	for _, blob := range blobs {
		if err := b.files.Save(ctx, blobPath(draftDir, expenseDir, blob.Meta.ID), blob.Content); err != nil {
			return err
		}
		metas = append(metas, blob.Meta)
	}
	if len(metas) > 0 {
		m.Expenses[expenseID] = metas
	}

	return b.writeManifest(ctx, draftID, m)
}

// List implements port.DraftBackend. Metadata whose blob is gone from disk
// is dropped and the manifest rewritten.
func (b *FileTreeBackend) List(ctx context.Context, draftID string) (map[string][]entity.DraftReceiptMeta, error) {
	draftDir := dirName(draftID)
	if draftDir == "" {
		return nil, fmt.Errorf("%w: invalid draft id %q", entity.ErrValidation, draftID)
	}

	m, err := b.readManifest(ctx, draftID)
	if err != nil {
		return nil, err
	}

	changed := false
	out := make(map[string][]entity.DraftReceiptMeta, len(m.Expenses))
	for expenseID, metas := range m.Expenses {
		expenseDir := dirName(expenseID)
		kept := metas[:0]
		for _, meta := range metas {
			if b.files.Exists(ctx, blobPath(draftDir, expenseDir, meta.ID)) {
				kept = append(kept, meta)
				continue
			}
			changed = true
			b.logger.Warn("Dropping draft receipt with missing blob",
				zap.String("draft_id", draftID),
				zap.String("expense_id", expenseID),
				zap.String("receipt_id", meta.ID))
		}
		if len(kept) > 0 {
			out[expenseID] = kept
		}
	}

	if changed {
		m.Expenses = out
		if err := b.writeManifest(ctx, draftID, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Get implements port.DraftBackend
func (b *FileTreeBackend) Get(ctx context.Context, draftID, expenseID string, ids []string) ([]entity.DraftBlob, error) {
	draftDir, expenseDir, err := b.dirs(draftID, expenseID)
	if err != nil {
		return nil, err
	}

	m, err := b.readManifest(ctx, draftID)
	if err != nil {
		return nil, err
	}

	want := toSet(ids)
	var blobs []entity.DraftBlob
	for _, meta := range m.Expenses[expenseID] {
		if len(want) > 0 && !want[meta.ID] {
			continue
		}
		content, err := b.files.Read(ctx, blobPath(draftDir, expenseDir, meta.ID))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, entity.DraftBlob{Meta: meta, Content: content})
	}
	return orderByIDs(blobs, ids)
}

// Remove implements port.DraftBackend
func (b *FileTreeBackend) Remove(ctx context.Context, draftID, expenseID string, ids []string) error {
	draftDir, expenseDir, err := b.dirs(draftID, expenseID)
	if err != nil {
		return err
	}

	m, err := b.readManifest(ctx, draftID)
	if err != nil {
		return err
	}

	want := toSet(ids)
	var kept []entity.DraftReceiptMeta
	for _, meta := range m.Expenses[expenseID] {
		if len(want) == 0 || want[meta.ID] {
			if err := b.files.Delete(ctx, blobPath(draftDir, expenseDir, meta.ID)); err != nil {
				return err
			}
			continue
		}
		kept = append(kept, meta)
	}

	if len(kept) > 0 {
		m.Expenses[expenseID] = kept
	} else {
		delete(m.Expenses, expenseID)
	}
	return b.writeManifest(ctx, draftID, m)
}

// Clear implements port.DraftBackend
func (b *FileTreeBackend) Clear(ctx context.Context, draftID string) error {
	name := dirName(draftID)
	if name == "" {
		return fmt.Errorf("%w: invalid draft id %q", entity.ErrValidation, draftID)
	}
	if _, err := b.readManifest(ctx, draftID); err != nil {
		return err
	}
	return b.folders.Delete(ctx, name)
}

// Close implements port.DraftBackend
func (b *FileTreeBackend) Close() error { return nil }

// Drafts lists the ids of drafts present under root
func (b *FileTreeBackend) Drafts(ctx context.Context) ([]string, error) {
	names, err := b.folders.List(ctx, "")
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		raw, err := b.files.Read(ctx, path.Join(name, manifestName))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var m manifest
		if err := json.Unmarshal(raw, &m); err != nil || dirName(m.DraftID) != name {
			b.logger.Warn("Skipping draft directory with unreadable manifest", zap.String("dir", name))
			continue
		}
		ids = append(ids, m.DraftID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (b *FileTreeBackend) dirs(draftID, expenseID string) (string, string, error) {
	draftDir := dirName(draftID)
	expenseDir := dirName(expenseID)
	if draftDir == "" || expenseDir == "" {
		return "", "", fmt.Errorf("%w: invalid draft %q or expense %q id", entity.ErrValidation, draftID, expenseID)
	}
	return draftDir, expenseDir, nil
}

func (b *FileTreeBackend) readManifest(ctx context.Context, draftID string) (*manifest, error) {
	m := &manifest{DraftID: draftID, Expenses: make(map[string][]entity.DraftReceiptMeta)}

	raw, err := b.files.Read(ctx, path.Join(dirName(draftID), manifestName))
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("corrupt draft manifest for %s: %w", draftID, err)
	}
	if m.DraftID != draftID {
		return nil, fmt.Errorf("draft manifest in %s belongs to %q, not %q", dirName(draftID), m.DraftID, draftID)
	}
	if m.Expenses == nil {
		m.Expenses = make(map[string][]entity.DraftReceiptMeta)
	}
	return m, nil
}

func (b *FileTreeBackend) writeManifest(ctx context.Context, draftID string, m *manifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode draft manifest: %w", err)
	}
	return b.files.Save(ctx, path.Join(dirName(draftID), manifestName), raw)
}

func blobPath(draftDir, expenseDir, receiptID string) string {
	return path.Join(draftDir, expenseDir, receiptID+".bin")
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// orderByIDs returns blobs in the order of ids and fails when one is missing.
// With no ids the input order is kept.
func orderByIDs(blobs []entity.DraftBlob, ids []string) ([]entity.DraftBlob, error) {
	if len(ids) == 0 {
		return blobs, nil
	}
	byID := make(map[string]entity.DraftBlob, len(blobs))
	for _, blob := range blobs {
		byID[blob.Meta.ID] = blob
	}
	out := make([]entity.DraftBlob, 0, len(ids))
	var missing []string
	for _, id := range ids {
		blob, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, blob)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: draft receipts %v", entity.ErrNotFound, missing)
	}
	return out, nil
}

var _ port.DraftBackend = (*FileTreeBackend)(nil)
