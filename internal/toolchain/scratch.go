package toolchain

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

// Workspace holds the per-request source and binary paths. Names are random
// so concurrent requests never collide.
type Workspace struct {
	SourcePath string
	BinaryPath string
}

// NewWorkspace writes source into dir under a fresh name and picks a binary
// path next to it.
func NewWorkspace(dir, source string) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch dir: %w", err)
	}

	id := uuid.New().String()
	ws := &Workspace{
		SourcePath: filepath.Join(abs, id+".c"),
		BinaryPath: filepath.Join(abs, id+binarySuffix()),
	}
	if err := os.WriteFile(ws.SourcePath, []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("write source: %w", err)
	}
	return ws, nil
}

// Remove deletes both files; missing files are ignored.
func (w *Workspace) Remove() error {
	var firstErr error
	for _, p := range []string{w.SourcePath, w.BinaryPath} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func binarySuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ".out"
}
