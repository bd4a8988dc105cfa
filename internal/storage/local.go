package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"stemworker/internal/fileutil"
)

// Local serves file:// and bare path locations from the local filesystem.
type Local struct{}

func (Local) List(_ context.Context, location string) ([]string, error) {
	dir, err := localPath(location)
	if err != nil {
		return nil, err
	}
	names, err := fileutil.ListFiles(dir, "")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return names, nil
}

func (Local) Download(_ context.Context, location, dstDir string) ([]string, error) {
	dir, err := localPath(location)
	if err != nil {
		return nil, err
	}
	names, err := fileutil.CopyDirFlat(dir, dstDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, fmt.Errorf("copy %s: %w", dir, err)
	}
	return names, nil
}

func (Local) Upload(_ context.Context, localFile, location string) error {
	dir, err := localPath(location)
	if err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.Base(localFile))
	if err := fileutil.CopyFileVerified(localFile, target); err != nil {
		return fmt.Errorf("copy to %s: %w", target, err)
	}
	return nil
}

func localPath(location string) (string, error) {
	loc, err := Parse(location)
	if err != nil {
		return "", err
	}
	if loc.Scheme != SchemeLocal {
		return "", fmt.Errorf("local storage cannot serve %s", location)
	}
	return loc.Key, nil
}
