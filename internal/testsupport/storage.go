package testsupport

import (
	"context"
	"path/filepath"
	"sync"

	"stemworker/internal/storage"
)

// FakeStorage serves locations from the local filesystem and records calls.
// Set DownloadErr or UploadErr to inject failures.
type FakeStorage struct {
	mu          sync.Mutex
	local       storage.Local
	DownloadErr error
	UploadErr   error
	Downloads   []string
	Uploads     []string
}

func (f *FakeStorage) List(ctx context.Context, location string) ([]string, error) {
	return f.local.List(ctx, location)
}

func (f *FakeStorage) Download(ctx context.Context, location, dstDir string) ([]string, error) {
	f.mu.Lock()
	f.Downloads = append(f.Downloads, location)
	err := f.DownloadErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.local.Download(ctx, location, dstDir)
}

func (f *FakeStorage) Upload(ctx context.Context, localFile, location string) error {
	f.mu.Lock()
	f.Uploads = append(f.Uploads, filepath.Join(location, filepath.Base(localFile)))
	err := f.UploadErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.local.Upload(ctx, localFile, location)
}

// UploadCount returns how many files were offered to Upload.
func (f *FakeStorage) UploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Uploads)
}
