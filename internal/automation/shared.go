package automation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"stemworker/internal/fileutil"
)

// SharedArea is the fixed directory the capability exports into.
type SharedArea struct {
	Dir       string
	Extension string
}

// Reset empties the area by removing and recreating it.
func (s SharedArea) Reset() error {
	if strings.TrimSpace(s.Dir) == "" {
		return errors.New("shared output dir is not configured")
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("clear shared output: %w", err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("recreate shared output: %w", err)
	}
	return nil
}

// Matches lists exports whose lowercased name contains the lowercased folder
// name and carries the expected extension.
func (s SharedArea) Matches(folderName string) ([]string, error) {
	names, err := fileutil.ListFiles(s.Dir, s.extension())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	needle := strings.ToLower(folderName)
	var matches []string
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), needle) {
			matches = append(matches, name)
		}
	}
	return matches, nil
}

// Verify reports whether at least one export for folderName exists.
func (s SharedArea) Verify(folderName string) bool {
	if strings.TrimSpace(folderName) == "" {
		return false
	}
	matches, err := s.Matches(folderName)
	return err == nil && len(matches) > 0
}

// Collect copies the exports for folderName into dst and returns their names.
func (s SharedArea) Collect(folderName, dst string) ([]string, error) {
	matches, err := s.Matches(folderName)
	if err != nil {
		return nil, err
	}
	for _, name := range matches {
		if err := fileutil.CopyFileVerified(filepath.Join(s.Dir, name), filepath.Join(dst, name)); err != nil {
			return nil, fmt.Errorf("collect %s: %w", name, err)
		}
	}
	return matches, nil
}

func (s SharedArea) extension() string {
	if s.Extension == "" {
		return ".wav"
	}
	return s.Extension
}
