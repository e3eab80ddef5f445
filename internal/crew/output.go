package crew

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"jobcrew/internal/common/errors"
)

// WriteOutputFile writes content to path, creating parent directories. The
// write happens under an advisory lock on path+".lock" so concurrent runs
// sharing a report path do not interleave.
func WriteOutputFile(ctx context.Context, path, content string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.NewOutputWriteFailedError(path, err)
		}
	}

	fl := flock.New(path + ".lock")
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return errors.NewOutputWriteFailedError(path, err)
	}
	if locked {
		defer func() {
			_ = fl.Unlock()
			_ = os.Remove(path + ".lock")
		}()
	}

	if err := os.WriteFile(path, []byte(StripCodeFence(content)), 0o644); err != nil {
		return errors.NewOutputWriteFailedError(path, err)
	}
	return nil
}

// StripCodeFence removes one code fence wrapping the whole text, e.g. a
// report the model returned as ```markdown ... ```.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return content
	}
	nl := strings.IndexByte(trimmed, '\n')
	if nl < 0 {
		return content
	}
	body := trimmed[nl+1 : len(trimmed)-3]
	if strings.Contains(body, "\n```\n") {
		// more than one fenced block; leave as is
		return content
	}
	return strings.TrimSpace(body) + "\n"
}
