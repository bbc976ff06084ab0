package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/comps-intel/internal/model"
)

func TestLocal_Download(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Deals"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Deals", "comps.csv"), []byte("a,b"), 0o600))

	l, err := NewLocal(root)
	require.NoError(t, err)

	data, err := l.Download(context.Background(), model.FileReference{Path: "x", RelativePath: "Deals/comps.csv"})
	require.NoError(t, err)
	assert.Equal(t, "a,b", string(data))

	data, err = l.Download(context.Background(), model.FileReference{Path: `Deals\comps.csv`})
	require.NoError(t, err)
	assert.Equal(t, "a,b", string(data))
}

func TestLocal_NotFound(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = l.Download(context.Background(), model.FileReference{Path: "missing.xlsx"})
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestLocal_RejectsEscape(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = l.Download(context.Background(), model.FileReference{Path: "../../etc/passwd"})
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Contains(t, err.Error(), "outside storage root")
}

func TestNewLocal_RequiresDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := NewLocal(file)
	require.Error(t, err)

	_, err = NewLocal(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestDownloadError(t *testing.T) {
	err := &DownloadError{Kind: KindAuthFailure, Path: "a.xlsx", StatusCode: 401, Err: assert.AnError}
	assert.Equal(t, "storage: auth failure: a.xlsx (status 401): "+assert.AnError.Error(), err.Error())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, KindOther, KindOf(assert.AnError))
	assert.Equal(t, "not found", KindNotFound.String())
}
