package ctxmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindInsertClosure(t *testing.T) {
	m := New[int]()
	m.Insert(42, 1)
	require.Equal(t, 1, m.Len())

	v, ok := m.Find(42)
	require.True(t, ok)
	require.Equal(t, 1, v)

	// find-then-insert on an existing key must not change cardinality.
	m.Insert(42, 2)
	require.Equal(t, 1, m.Len())
	v, ok = m.Find(42)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestGrowthPreservesAllEntries(t *testing.T) {
	m := New[int]()
	const n = 5000
	for i := 0; i < n; i++ {
		m.Insert(uint64(i)*0x1000003+7, i)
	}
	require.Equal(t, n, m.Len())
	for i := 0; i < n; i++ {
		v, ok := m.Find(uint64(i)*0x1000003 + 7)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}

func TestMissingKey(t *testing.T) {
	m := New[int]()
	m.Insert(1, 10)
	_, ok := m.Find(999)
	require.False(t, ok)
}

func TestPrefetchDoesNotPanicOnEmptyMap(t *testing.T) {
	m := New[int]()
	require.NotPanics(t, func() { m.Prefetch(123) })
}
