package remote

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ferry/internal/services"
)

// Local writes objects below a directory. Files appear atomically via rename.
type Local struct {
	root string
}

// NewLocal creates root if needed.
func NewLocal(root string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "remote", "local", "directory is required", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "remote", "local", "create directory", err)
	}
	return &Local{root: root}, nil
}

func (l *Local) Name() string { return "file://" + l.root }

func (l *Local) Put(ctx context.Context, obj Object) (string, error) {
	target, err := l.resolve(obj.Key)
	if err != nil {
		return "", wrapPut("local", obj.Key, err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", wrapPut("local", obj.Key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".ferry-*")
	if err != nil {
		return "", wrapPut("local", obj.Key, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	written, err := io.Copy(tmp, ctxReader{ctx: ctx, r: obj.Body})
	if err != nil {
		cleanup()
		return "", wrapPut("local", obj.Key, err)
	}
	if obj.Size >= 0 && written != obj.Size {
		cleanup()
		return "", wrapPut("local", obj.Key, fmt.Errorf("short write: %d of %d bytes", written, obj.Size))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", wrapPut("local", obj.Key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", wrapPut("local", obj.Key, err)
	}
	return target, nil
}

// Ready confirms the directory is writable.
func (l *Local) Ready(context.Context) error {
	probe, err := os.CreateTemp(l.root, ".ferry-probe-*")
	if err != nil {
		return services.Wrap(services.ErrRemote, "remote", "local probe", l.root, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

func (l *Local) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash("/" + key))
	if cleaned == string(filepath.Separator) {
		return "", fmt.Errorf("empty object key")
	}
	return filepath.Join(l.root, cleaned), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	if c.r == nil {
		return 0, io.EOF
	}
	return c.r.Read(p)
}
