// Package storage fetches raw workbook bytes for selected file references.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/sells-group/comps-intel/internal/model"
)

// Kind classifies a download failure.
type Kind int

const (
	KindOther Kind = iota
	KindNotFound
	KindAuthFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAuthFailure:
		return "auth failure"
	default:
		return "download failed"
	}
}

// DownloadError is returned by every Downloader.
type DownloadError struct {
	Kind       Kind
	Path       string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("storage: %s: %s (status %d): %v", e.Kind, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("storage: %s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first DownloadError in err's chain.
func KindOf(err error) Kind {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindOther
}

// Downloader returns the bytes of one workbook.
type Downloader interface {
	Download(ctx context.Context, ref model.FileReference) ([]byte, error)
}

// DownloaderFunc adapts a function to Downloader.
type DownloaderFunc func(ctx context.Context, ref model.FileReference) ([]byte, error)

// Download calls f.
func (f DownloaderFunc) Download(ctx context.Context, ref model.FileReference) ([]byte, error) {
	return f(ctx, ref)
}

func storagePath(ref model.FileReference) string {
	if ref.RelativePath != "" {
		return ref.RelativePath
	}
	return ref.Path
}
