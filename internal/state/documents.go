package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/user/claimline/internal/types"
)

// ErrDocumentNotFound is returned when a stored document does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// documentName builds {slot}_{YYYYMMDD_HHMMSS}.{ext} in UTC.
func documentName(slot string, img *types.Image, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", slot, now.UTC().Format("20060102_150405"), img.Ext())
}

// validFilename rejects names that could escape the documents folder.
func validFilename(name string) bool {
	return name != "" && name == filepath.Base(name) && !strings.HasPrefix(name, ".")
}

// FileDocumentStore writes uploaded images to claims/<claimID>/documents/.
type FileDocumentStore struct {
	root string
	now  func() time.Time
}

// NewFileDocumentStore creates a document store rooted at the data directory.
func NewFileDocumentStore(root string) *FileDocumentStore {
	return &FileDocumentStore{root: root, now: time.Now}
}

func (d *FileDocumentStore) documentsDir(claimID string) string {
	return filepath.Join(d.root, "claims", claimID, "documents")
}

// Save writes the image and returns its filename.
func (d *FileDocumentStore) Save(_ context.Context, claimID, slot string, img *types.Image) (string, error) {
	if img == nil || len(img.Data) == 0 {
		return "", fmt.Errorf("save document: empty image")
	}
	name := documentName(slot, img, d.now())
	if err := writeAtomic(filepath.Join(d.documentsDir(claimID), name), img.Data); err != nil {
		return "", fmt.Errorf("save document: %w", err)
	}
	slog.Info("saved document", "claim_id", claimID, "filename", name, "bytes", len(img.Data))
	return name, nil
}

// Open returns the bytes of a stored document.
func (d *FileDocumentStore) Open(_ context.Context, claimID, filename string) ([]byte, error) {
	if !validFilename(filename) {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, filename)
	}
	data, err := os.ReadFile(filepath.Join(d.documentsDir(claimID), filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, filename)
		}
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

// List returns the sorted filenames stored for a claim.
func (d *FileDocumentStore) List(_ context.Context, claimID string) ([]string, error) {
	entries, err := os.ReadDir(d.documentsDir(claimID))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read documents dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && !strings.HasSuffix(e.Name(), ".tmp") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
