package history

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// Archive writes a brotli-compressed copy of src into dir, named after src and
// the timestamp, and returns its path. A missing src is not an error and
// returns "".
func Archive(src, dir string, now time.Time) (string, error) {
	in, err := os.Open(src)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("history: open %s for archive: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("history: mkdir %s: %w", dir, err)
	}

	base := filepath.Base(src)
	name := strings.TrimSuffix(base, filepath.Ext(base)) + "-" + now.Format("20060102-150405") + filepath.Ext(base) + ".br"
	dst := filepath.Join(dir, name)

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("history: create archive %s: %w", dst, err)
	}

	bw := brotli.NewWriterLevel(out, brotli.DefaultCompression)
	if _, err := io.Copy(bw, in); err != nil {
		bw.Close()
		out.Close()
		return "", fmt.Errorf("history: compress %s: %w", src, err)
	}
	if err := bw.Close(); err != nil {
		out.Close()
		return "", fmt.Errorf("history: flush archive %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("history: close archive %s: %w", dst, err)
	}
	return dst, nil
}
