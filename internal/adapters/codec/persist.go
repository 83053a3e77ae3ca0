package codec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/okian/kidnapped/internal/domain/episode"
	"github.com/okian/kidnapped/pkg/metrics"
)

const lockRetryDelay = 50 * time.Millisecond

// ErrLocked is returned when the output lock could not be taken before ctx ended.
var ErrLocked = errors.New("dataset output is locked by another writer")

// Save writes ds to path, creating parent directories. Concurrent writers to
// the same path are serialized through <path>.lock and readers only ever see
// a complete document.
func Save(ctx context.Context, path string, ds *episode.Dataset) error {
	data, err := Marshal(ds)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire output lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	defer func() { _ = lock.Unlock() }()

	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return err
	}
	metrics.RecordDatasetWrite()
	return nil
}

// Load reads and decodes the dataset document at path.
func Load(path string) (*episode.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	ds, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	metrics.RecordDatasetRead()
	return ds, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".episodes-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(step string, err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%s: %w", step, err)
	}

	if _, err := tmp.Write(data); err != nil {
		return fail("write temp file", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail("chmod temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
