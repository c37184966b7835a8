package heap

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/kzdb/kzdb/internal/bufferpool"
	"github.com/kzdb/kzdb/internal/storage"
)

func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	fs := afero.NewMemMapFs()
	fm, err := storage.Open(fs, "/data/kzdb.db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fm.Close() })

	pm, err := bufferpool.Open(fm, 16, nil)
	require.NoError(t, err)

	h, _, err := Create(pm, nil)
	require.NoError(t, err)
	return h
}

func TestHeapInsertAndRead(t *testing.T) {
	h := newTestHeap(t)

	loc, err := h.Insert([]byte("row-1"))
	require.NoError(t, err)

	got, err := h.Read(loc)
	require.NoError(t, err)
	require.Equal(t, []byte("row-1"), got)
}

func TestHeapSpillsToNewPage(t *testing.T) {
	h := newTestHeap(t)
	payload := make([]byte, 200)

	var last RowLocation
	for i := 0; i < 50; i++ {
		loc, err := h.Insert(payload)
		require.NoError(t, err)
		last = loc
	}
	require.NotEqual(t, h.root, last.PageID)
}

func TestHeapUpdateShrinkInPlace(t *testing.T) {
	h := newTestHeap(t)
	loc, err := h.Insert([]byte("hello world"))
	require.NoError(t, err)

	newLoc, err := h.Update(loc, []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, loc, newLoc)

	got, err := h.Read(newLoc)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), got)
}

func TestHeapUpdateGrowMovesRow(t *testing.T) {
	h := newTestHeap(t)
	loc, err := h.Insert([]byte("hi"))
	require.NoError(t, err)

	newLoc, err := h.Update(loc, []byte("hello, much longer value here"))
	require.NoError(t, err)

	got, err := h.Read(newLoc)
	require.NoError(t, err)
	require.Equal(t, []byte("hello, much longer value here"), got)

	_, err = h.Read(loc)
	require.Error(t, err)
}

func TestHeapDeleteThenScanSkipsTombstone(t *testing.T) {
	h := newTestHeap(t)
	loc1, err := h.Insert([]byte("keep"))
	require.NoError(t, err)
	loc2, err := h.Insert([]byte("drop"))
	require.NoError(t, err)

	require.NoError(t, h.Delete(loc2))

	var seen [][]byte
	err = h.Scan(func(loc RowLocation, payload []byte) error {
		seen = append(seen, payload)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.Equal(t, []byte("keep"), seen[0])
	_ = loc1
}

func TestHeapTruncateFreesExtraPages(t *testing.T) {
	h := newTestHeap(t)
	payload := make([]byte, 200)
	for i := 0; i < 50; i++ {
		_, err := h.Insert(payload)
		require.NoError(t, err)
	}

	require.NoError(t, h.Truncate())

	var count int
	err := h.Scan(func(loc RowLocation, payload []byte) error {
		count++
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, count)
}
