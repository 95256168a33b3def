package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FilesystemBackend is the reference storage backend: it writes negotiated
// uploads under a root directory on local disk and serves deterministic
// file:// style URLs. Sufficient to exercise the negotiator end to end;
// not a production object-storage integration.
type FilesystemBackend struct {
	root string
	urlTTL time.Duration

	mu sync.Mutex
	pending map[string]string // uploadId -> absolute file path
}

// NewFilesystemBackend creates a backend rooted at dir. dir is created if
// it does not already exist.
func NewFilesystemBackend(dir string, urlTTL time.Duration) (*FilesystemBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root %q: %w", dir, err)
	}
	return &FilesystemBackend{root: dir, urlTTL: urlTTL, pending: make(map[string]string)}, nil
}

func (b *FilesystemBackend) GenerateUploadURL(ctx context.Context, params GenerateUploadURLParams) (*GeneratedUpload, error) {
	uploadID := fmt.Sprintf("upl_%s_%s", params.SubmissionID, sanitizeFilename(params.Filename))
	path := filepath.Join(b.root, params.SubmissionID, sanitizeFilename(params.Filename))

	b.mu.Lock()
	b.pending[uploadID] = path
	b.mu.Unlock()

	return &GeneratedUpload{
		UploadID: uploadID,
		Method: "PUT",
		URL: "file://" + path,
		ExpiresAt: time.Now().Add(b.urlTTL),
	}, nil
}

// VerifyUpload reports completed once the file named by the negotiated
// upload actually exists on disk, and pending otherwise — there is no
// separate completion callback for local disk, the write itself is the
// signal.
func (b *FilesystemBackend) VerifyUpload(ctx context.Context, uploadID string) (*VerifyResult, error) {
	b.mu.Lock()
	path, ok := b.pending[uploadID]
	b.mu.Unlock()
	if !ok {
		return &VerifyResult{Status: VerifyFailed, Error: "unknown upload id"}, nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &VerifyResult{Status: VerifyPending}, nil
		}
		return &VerifyResult{Status: VerifyFailed, Error: err.Error()}, nil
	}
	return &VerifyResult{Status: VerifyCompleted}, nil
}

func (b *FilesystemBackend) GenerateDownloadURL(ctx context.Context, uploadID string) (string, error) {
	b.mu.Lock()
	path, ok := b.pending[uploadID]
	b.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown upload id %q", uploadID)
	}
	return "file://" + path, nil
}

func sanitizeFilename(name string) string {
	clean := filepath.Base(name)
	if clean == "." || clean == "/" || clean == "" {
		return "upload.bin"
	}
	return clean
}
