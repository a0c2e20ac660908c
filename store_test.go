package xantippe

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *ContentStore {
	t.Helper()
	cs, err := OpenContentStore(t.TempDir(), ChecksumXXH3)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Shutdown() })
	return cs
}

func TestContentStoreStoreRetrieveRoundtrip(t *testing.T) {
	cs := openTestStore(t)
	require.NoError(t, cs.Create(1))
	require.NoError(t, cs.Store(1, []byte("hello world")))

	stream, err := cs.Retrieve(1)
	require.NoError(t, err)
	defer stream.Close()

	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))
}

func TestContentStoreSizeReflectsEntryCount(t *testing.T) {
	cs := openTestStore(t)
	require.Equal(t, 0, cs.Size())

	require.NoError(t, cs.Create(1))
	require.NoError(t, cs.Store(1, []byte("a")))
	require.Equal(t, 1, cs.Size())

	require.NoError(t, cs.Create(2))
	require.NoError(t, cs.Store(2, []byte("bb")))
	require.Equal(t, 2, cs.Size())

	require.NoError(t, cs.Delete(1))
	require.Equal(t, 1, cs.Size())
}

func TestContentStoreOverwriteDropsOldExtent(t *testing.T) {
	cs := openTestStore(t)
	require.NoError(t, cs.Create(1))
	require.NoError(t, cs.Store(1, []byte("short")))
	require.NoError(t, cs.Store(1, []byte("a much longer replacement payload")))

	length, ok := cs.Length(1)
	require.True(t, ok)
	require.EqualValues(t, len("a much longer replacement payload"), length)

	stream, err := cs.Retrieve(1)
	require.NoError(t, err)
	defer stream.Close()
	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, "a much longer replacement payload", string(got))
}

func TestContentStoreExtentsDoNotOverlap(t *testing.T) {
	cs := openTestStore(t)
	payloads := [][]byte{[]byte("aaaa"), []byte("bb"), []byte("ccccccc")}
	for i, p := range payloads {
		id := uint32(i + 1)
		require.NoError(t, cs.Create(id))
		require.NoError(t, cs.Store(id, p))
	}

	cs.mu.Lock()
	ordered := cs.sortedLocked()
	cs.mu.Unlock()

	for i := 1; i < len(ordered); i++ {
		prevEnd := ordered[i-1].offset + ordered[i-1].length
		require.LessOrEqualf(t, prevEnd, ordered[i].offset, "extent %d overlaps extent %d", i-1, i)
	}
}

func TestContentStoreDeleteThenRetrieveNotFound(t *testing.T) {
	cs := openTestStore(t)
	require.NoError(t, cs.Create(1))
	require.NoError(t, cs.Store(1, []byte("x")))
	require.NoError(t, cs.Delete(1))

	_, err := cs.Retrieve(1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestContentStoreSyncFlushesFATWithoutClosing(t *testing.T) {
	dir := t.TempDir()
	cs := openTestStoreAt(t, dir)
	require.NoError(t, cs.Create(1))
	require.NoError(t, cs.Store(1, []byte("flushed")))

	require.NoError(t, cs.Sync())

	b, err := os.ReadFile(filepath.Join(dir, fatFileName))
	require.NoError(t, err)
	require.NotEmpty(t, b)

	// The store is still open and usable after Sync; it hasn't closed the
	// content file the way Shutdown does.
	stream, err := cs.Retrieve(1)
	require.NoError(t, err)
	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, "flushed", string(got))
	stream.Close()
}

func openTestStoreAt(t *testing.T, dir string) *ContentStore {
	t.Helper()
	cs, err := OpenContentStore(dir, ChecksumXXH3)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Shutdown() })
	return cs
}

func TestContentStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cs, err := OpenContentStore(dir, ChecksumXXH3)
	require.NoError(t, err)
	require.NoError(t, cs.Create(1))
	require.NoError(t, cs.Store(1, []byte("persisted")))
	require.NoError(t, cs.Shutdown())

	reopened, err := OpenContentStore(dir, ChecksumXXH3)
	require.NoError(t, err)
	defer reopened.Shutdown()

	stream, err := reopened.Retrieve(1)
	require.NoError(t, err)
	defer stream.Close()
	got, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.Equal(t, "persisted", string(got))
}

func TestContentStoreDeleteAllTruncates(t *testing.T) {
	cs := openTestStore(t)
	require.NoError(t, cs.Create(1))
	require.NoError(t, cs.Store(1, []byte("x")))
	require.NoError(t, cs.DeleteAll())
	require.Equal(t, 0, cs.Size())
	_, err := cs.Retrieve(1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPlaceFirstFit(t *testing.T) {
	entries := []*extent{
		{offset: 0, length: 10},
		{offset: 30, length: 10},
	}
	// gap between 10 and 30 is 20 bytes; a 15-byte payload fits there.
	require.EqualValues(t, 10, place(entries, 15))
	// a 25-byte payload doesn't fit in the gap, so it goes after the last extent.
	require.EqualValues(t, 40, place(entries, 25))
}
