package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestCommitAdvancesHeightAndAppHash(t *testing.T) {
	store := openTestStore(t)
	require.Equal(t, int64(0), store.Height())

	delta := store.NewDelta()
	delta.PutVerifiable("accounts/foo/nonce", []byte{1})
	hash1, height1, err := store.Commit(delta)
	require.NoError(t, err)
	require.Equal(t, int64(1), height1)
	require.NotEmpty(t, hash1)

	delta2 := store.NewDelta()
	delta2.PutVerifiable("accounts/foo/nonce", []byte{2})
	hash2, height2, err := store.Commit(delta2)
	require.NoError(t, err)
	require.Equal(t, int64(2), height2)
	require.NotEqual(t, hash1, hash2)
}

func TestNonverifiableWritesDoNotAffectAppHash(t *testing.T) {
	store := openTestStore(t)

	delta := store.NewDelta()
	delta.PutVerifiable("accounts/foo/nonce", []byte{1})
	hashWithoutNonverifiable, _, err := store.Commit(delta)
	require.NoError(t, err)

	store2 := openTestStore(t)
	delta2 := store2.NewDelta()
	delta2.PutVerifiable("accounts/foo/nonce", []byte{1})
	delta2.PutNonverifiable("height-index/1", []byte("whatever"))
	hashWithNonverifiable, _, err := store2.Commit(delta2)
	require.NoError(t, err)

	require.Equal(t, hashWithoutNonverifiable, hashWithNonverifiable)
}

func TestEphemeralStateNeverPersists(t *testing.T) {
	store := openTestStore(t)
	store.SetEphemeral("fingerprint", []byte("proposal-1"))
	v, ok := store.Ephemeral("fingerprint")
	require.True(t, ok)
	require.Equal(t, []byte("proposal-1"), v)

	store.ClearEphemeral()
	_, ok = store.Ephemeral("fingerprint")
	require.False(t, ok)
}

func TestDeltaForkRevertDiscardsChildWrites(t *testing.T) {
	store := openTestStore(t)
	base := store.NewDelta()
	base.PutVerifiable("accounts/foo/nonce", []byte{1})

	child := base.Fork()
	child.PutVerifiable("accounts/foo/nonce", []byte{99})
	v, err := child.GetVerifiable("accounts/foo/nonce")
	require.NoError(t, err)
	require.Equal(t, []byte{99}, v)

	child.Revert()
	v, err = child.GetVerifiable("accounts/foo/nonce")
	require.NoError(t, err)
	require.Equal(t, []byte{1}, v)
}

func TestDeltaApplyMergesChildIntoParent(t *testing.T) {
	store := openTestStore(t)
	base := store.NewDelta()

	child := base.Fork()
	child.PutVerifiable("accounts/foo/nonce", []byte{7})
	base.Apply(child)

	v, err := base.GetVerifiable("accounts/foo/nonce")
	require.NoError(t, err)
	require.Equal(t, []byte{7}, v)

	_, _, err = store.Commit(base)
	require.NoError(t, err)

	committed, err := store.GetVerifiable("accounts/foo/nonce")
	require.NoError(t, err)
	require.Equal(t, []byte{7}, committed)
}

func TestDeltaDeleteTombstonesKey(t *testing.T) {
	store := openTestStore(t)
	delta := store.NewDelta()
	delta.PutVerifiable("accounts/foo/nonce", []byte{1})
	_, _, err := store.Commit(delta)
	require.NoError(t, err)

	delta2 := store.NewDelta()
	delta2.DeleteVerifiable("accounts/foo/nonce")
	v, err := delta2.GetVerifiable("accounts/foo/nonce")
	require.NoError(t, err)
	require.Nil(t, v)

	_, _, err = store.Commit(delta2)
	require.NoError(t, err)
	committed, err := store.GetVerifiable("accounts/foo/nonce")
	require.NoError(t, err)
	require.Nil(t, committed)
}
