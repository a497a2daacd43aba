package fileutil

import (
	"fmt"
	"io"
	"os"
)

// Tail returns up to maxBytes from the end of the file at path. When the
// file is longer than maxBytes the result starts mid-stream, so a marker
// line is prepended to make the truncation visible in error reports.
//
// A missing file is not an error: startup failures are routinely diagnosed
// from processes that died before writing anything, and an empty tail is
// more useful there than a second error. Other read failures are returned.
func Tail(path string, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		return "", fmt.Errorf("tail %s: max bytes must be positive, got %d", path, maxBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("tail %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("tail %s: %w", path, err)
	}

	truncated := false
	if size := info.Size(); size > maxBytes {
		if _, err := f.Seek(size-maxBytes, io.SeekStart); err != nil {
			return "", fmt.Errorf("tail %s: %w", path, err)
		}
		truncated = true
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("tail %s: %w", path, err)
	}

	if truncated {
		return "[...truncated...]\n" + string(data), nil
	}
	return string(data), nil
}
