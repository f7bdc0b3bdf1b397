// Package artifact persists fitted preprocessors and models as JSON files.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// CodeStorage is the error code reported to API callers.
const CodeStorage = "storage_error"

// StorageError reports an artifact read or write failure.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Code() string { return CodeStorage }

// Save serializes obj to path, creating missing parent directories. An
// existing file is replaced.
func Save(path string, obj any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StorageError{Op: "mkdir", Path: dir, Err: err}
	}

	payload, err := json.Marshal(obj)
	if err != nil {
		return &StorageError{Op: "encode", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Load decodes the object stored at path into out.
func Load(path string, out any) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return &StorageError{Op: "read", Path: path, Err: err}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &StorageError{Op: "decode", Path: path, Err: err}
	}
	return nil
}

// LoadAs is Load for callers that want the value back.
func LoadAs[T any](path string) (T, error) {
	var out T
	if err := Load(path, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Exists reports whether an artifact is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsNotFound reports whether err is a StorageError caused by a missing file.
func IsNotFound(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr) && errors.Is(storageErr.Err, fs.ErrNotExist)
}
