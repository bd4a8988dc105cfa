package transfer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// WorkspacePrefix marks directories owned by a job pass.
const WorkspacePrefix = "job-"

// Workspace is one job's private directory tree.
type Workspace struct {
	Root   string
	Input  string
	Output string
}

// NewWorkspace creates a fresh job directory under root. Input is named after
// the source folder so tools that derive names from paths see the original.
func NewWorkspace(root, folderName string) (*Workspace, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("workspace root is not configured")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	dir := filepath.Join(root, WorkspacePrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	if folderName == "" || folderName == "." || folderName == string(filepath.Separator) {
		folderName = "input"
	}
	return &Workspace{
		Root:   dir,
		Input:  filepath.Join(dir, folderName),
		Output: filepath.Join(dir, "output"),
	}, nil
}

// Release deletes the workspace. Calling it again, or on nil, is a no-op.
func Release(ws *Workspace) error {
	if ws == nil || ws.Root == "" {
		return nil
	}
	if err := os.RemoveAll(ws.Root); err != nil {
		return fmt.Errorf("release workspace %s: %w", ws.Root, err)
	}
	return nil
}
