package inbox

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestPutGet(t *testing.T) {
	t.Parallel()

	store, err := New(t.TempDir())
	require.NoError(t, err)

	id, err := store.Put([]byte("solid part\nendsolid part\n"))
	require.NoError(t, err)
	require.Equal(t, byte('b'), id[0], "CIDv1 strings use the base32 'b' prefix")
	require.True(t, store.Has(id))

	data, err := store.Get(id)
	require.NoError(t, err)
	require.Equal(t, "solid part\nendsolid part\n", string(data))

	again, err := store.Put([]byte("solid part\nendsolid part\n"))
	require.NoError(t, err)
	require.Equal(t, id, again)
}

func TestGetErrors(t *testing.T) {
	t.Parallel()

	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get("not-a-cid")
	require.ErrorIs(t, err, ErrInvalidID)
	require.False(t, store.Has("not-a-cid"))

	id, err := ID([]byte("never stored"))
	require.NoError(t, err)

	_, err = store.Get(id.String())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRejectMutationByOverwrite(t *testing.T) {
	t.Parallel()

	store, err := New(t.TempDir())
	require.NoError(t, err)

	orig := []byte("original")

	id, err := store.Put(orig)
	require.NoError(t, err)

	parsed, err := ID(orig)
	require.NoError(t, err)

	// Corrupt the stored object out-of-band.
	path := store.pathFor(parsed)
	require.NoError(t, os.Chmod(path, 0o644))
	require.NoError(t, os.WriteFile(path, []byte("corrupted"), 0o644))

	_, err = store.Get(id)
	require.ErrorIs(t, err, ErrMismatch)

	_, err = store.Put(orig)
	require.ErrorIs(t, err, ErrImmutable)
}

func TestConcurrentPutOfSameContent(t *testing.T) {
	t.Parallel()

	store, err := New(t.TempDir())
	require.NoError(t, err)

	data := bytes.Repeat([]byte("facet normal 0 0 1\n"), 1<<18)

	want, err := ID(data)
	require.NoError(t, err)

	var group errgroup.Group

	for range 8 {
		group.Go(func() error {
			for range 10 {
				id, err := store.Put(data)
				if err != nil {
					return err
				}

				if id != want.String() {
					return ErrMismatch
				}
			}

			return nil
		})
	}

	require.NoError(t, group.Wait())

	got, err := store.Get(want.String())
	require.NoError(t, err)
	require.True(t, bytes.Equal(data, got))

	entries, err := os.ReadDir(filepath.Dir(store.pathFor(want)))
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging files must not be left behind")
}

func TestNewRequiresRoot(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.Error(t, err)
}
