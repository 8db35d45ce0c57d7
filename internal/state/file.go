package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// jsonFile loads and atomically replaces one JSON-encoded artifact.
type jsonFile struct {
	path string
	log  *slog.Logger
}

// read decodes the file into dst. It reports false when the file is absent
// or unreadable; corruption is logged and swallowed so the cycle can proceed
// as a first run.
func (f jsonFile) read(dst any) bool {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.log.Warn("state file unreadable, starting empty", slog.String("path", f.path), slog.Any("err", err))
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		f.log.Warn("state file corrupt, starting empty", slog.String("path", f.path), slog.Any("err", err))
		return false
	}
	return true
}

func (f jsonFile) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := writeFileAtomic(f.path, data, 0o644); err != nil {
		return fmt.Errorf("write state %s: %w", f.path, err)
	}
	return nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
