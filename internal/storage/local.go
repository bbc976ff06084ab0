package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/comps-intel/internal/model"
)

// Local reads workbooks from a directory tree that mirrors the document
// library.
type Local struct {
	root string
}

// NewLocal serves files under root.
func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: resolve root %s", root)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, eris.Wrapf(err, "storage: stat root %s", abs)
	}
	if !info.IsDir() {
		return nil, eris.Errorf("storage: root %s is not a directory", abs)
	}
	return &Local{root: abs}, nil
}

// Download reads the reference's relative path under the root. Paths that
// escape the root are reported as not found.
func (l *Local) Download(ctx context.Context, ref model.FileReference) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &DownloadError{Kind: KindOther, Path: ref.Path, Err: err}
	}

	rel := filepath.FromSlash(strings.ReplaceAll(storagePath(ref), `\`, "/"))
	full := filepath.Join(l.root, rel)
	if full != l.root && !strings.HasPrefix(full, l.root+string(filepath.Separator)) {
		return nil, &DownloadError{Kind: KindNotFound, Path: ref.Path, Err: eris.New("path outside storage root")}
	}

	data, err := os.ReadFile(full) //nolint:gosec // confined to root above
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &DownloadError{Kind: KindNotFound, Path: ref.Path, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return nil, &DownloadError{Kind: KindAuthFailure, Path: ref.Path, Err: err}
	case err != nil:
		return nil, &DownloadError{Kind: KindOther, Path: ref.Path, Err: err}
	}
	return data, nil
}
