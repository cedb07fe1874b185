package contacts

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendazap/vendazap/internal/logging"
	"github.com/vendazap/vendazap/internal/store"
)

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewResolver(store.NewContactStore(db), log)
}

func TestResolve_CreatesOnFirstContact(t *testing.T) {
	r := testResolver(t)

	c, err := r.Resolve("store-1", "5511999990000", "Maria")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Maria", c.DisplayName)
	assert.False(t, c.LastInteractionAt.IsZero())
}

func TestResolve_ReturnsSameContact(t *testing.T) {
	r := testResolver(t)

	c1, err := r.Resolve("store-1", "5511999990000", "Maria")
	require.NoError(t, err)
	c2, err := r.Resolve("store-1", "5511999990000", "")
	require.NoError(t, err)

	assert.Equal(t, c1.ID, c2.ID)
}

func TestResolve_EmptyAddress(t *testing.T) {
	r := testResolver(t)

	_, err := r.Resolve("store-1", "", "Maria")
	assert.ErrorIs(t, err, ErrEmptyAddress)
}

func TestResolve_ConcurrentSameKey_NoDuplicates(t *testing.T) {
	r := testResolver(t)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := r.Resolve("store-1", "5511999990000", "")
			if err == nil {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	first := ids[0]
	require.NotEmpty(t, first)
	for _, id := range ids {
		assert.Equal(t, first, id)
	}
}
