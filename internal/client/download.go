package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/scoreapp/score/internal/model"
)

// OutputPath is where an output of jobID is stored inside dir.
func OutputPath(dir, jobID string, kind model.OutputKind) string {
	return filepath.Join(dir, jobID+"_"+kind.FileName())
}

// DownloadFile downloads locator into path. The bytes land in a temporary
// file next to path that replaces it only once the transfer succeeded, so a
// failed download leaves an existing file untouched. Transport failures are
// returned unwrapped.
func DownloadFile(ctx context.Context, t Transport, locator, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := t.Download(ctx, locator, tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move output file into place: %w", err)
	}
	return nil
}
