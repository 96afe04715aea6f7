package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSetRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set("experiment:abc", `{"id":"abc"}`))
	v, ok, err := s.Get("experiment:abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"id":"abc"}`, v)
}

func TestMemoryStore_Del(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.Del("k"))
	_, ok, err := s.Get("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStore_SAddSMembers(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SAdd("experiments", "abc"))
	require.NoError(t, s.SAdd("experiments", "def"))
	require.NoError(t, s.SAdd("experiments", "abc")) // idempotent

	members, err := s.SMembers("experiments")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"abc", "def"}, members)
}

func TestMemoryStore_SMembersUnknownKeyIsEmpty(t *testing.T) {
	s := NewMemoryStore()
	members, err := s.SMembers("nope")
	require.NoError(t, err)
	require.Empty(t, members)
}
