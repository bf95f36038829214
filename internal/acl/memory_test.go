package acl_test

import (
	"sync"
	"testing"

	"github.com/serroba/online-board/internal/acl"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GrantAndRoleOf(t *testing.T) {
	t.Parallel()

	store := acl.NewMemoryStore()

	require.NoError(t, store.Grant(1, "alice@example.com", acl.Editor))

	role, err := store.RoleOf(1, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, acl.Editor, role)

	_, err = store.RoleOf(2, "alice@example.com")
	require.ErrorIs(t, err, acl.ErrMemberNotFound)
}

func TestMemoryStore_GrantOverwrites(t *testing.T) {
	t.Parallel()

	store := acl.NewMemoryStore()

	require.NoError(t, store.Grant(1, "alice@example.com", acl.Viewer))
	require.NoError(t, store.Grant(1, "alice@example.com", acl.Owner))

	role, err := store.RoleOf(1, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, acl.Owner, role)
}

func TestMemoryStore_KeepsAnOwner(t *testing.T) {
	t.Parallel()

	store := acl.NewMemoryStore()
	require.NoError(t, store.Grant(1, "alice@example.com", acl.Owner))

	require.ErrorIs(t, store.Grant(1, "alice@example.com", acl.Editor), acl.ErrLastOwner)
	require.ErrorIs(t, store.Revoke(1, "alice@example.com"), acl.ErrLastOwner)

	require.NoError(t, store.Grant(1, "bob@example.com", acl.Owner))
	require.NoError(t, store.Revoke(1, "alice@example.com"))
}

func TestMemoryStore_Revoke(t *testing.T) {
	t.Parallel()

	store := acl.NewMemoryStore()

	require.NoError(t, store.Grant(1, "alice@example.com", acl.Editor))
	require.NoError(t, store.Revoke(1, "alice@example.com"))

	_, err := store.RoleOf(1, "alice@example.com")
	require.ErrorIs(t, err, acl.ErrMemberNotFound)

	require.ErrorIs(t, store.Revoke(1, "alice@example.com"), acl.ErrMemberNotFound)
}

func TestMemoryStore_MembersSorted(t *testing.T) {
	t.Parallel()

	store := acl.NewMemoryStore()

	require.NoError(t, store.Grant(1, "carol@example.com", acl.Viewer))
	require.NoError(t, store.Grant(1, "alice@example.com", acl.Owner))
	require.NoError(t, store.Grant(2, "bob@example.com", acl.Editor))

	members, err := store.Members(1)
	require.NoError(t, err)
	require.Equal(t, []acl.Member{
		{BoardID: 1, Email: "alice@example.com", Role: acl.Owner},
		{BoardID: 1, Email: "carol@example.com", Role: acl.Viewer},
	}, members)

	empty, err := store.Members(99)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	t.Parallel()

	store := acl.NewMemoryStore()

	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_ = store.Grant(int64(i%5+1), "user@example.com", acl.Editor)
			_, _ = store.RoleOf(int64(i%5+1), "user@example.com")
			_, _ = store.Members(int64(i%5 + 1))
		}(i)
	}

	wg.Wait()

	for id := int64(1); id <= 5; id++ {
		role, err := store.RoleOf(id, "user@example.com")
		require.NoError(t, err)
		require.Equal(t, acl.Editor, role)
	}
}
