package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir(), DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	b := s.Bucket("frontier")

	require.NoError(t, b.Put(ctx, "k1", "v1"))

	got, ok, err := b.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", got)

	_, ok, err = b.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutOverwrites(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir(), DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	b := s.Bucket("tokens")

	require.NoError(t, b.Put(ctx, "word", "1"))
	require.NoError(t, b.Put(ctx, "word", "2"))

	got, ok, err := b.Get(ctx, "word")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", got)

	n, err := b.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestBucketsAreIsolated(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir(), DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Bucket("a").Put(ctx, "k", "va"))
	require.NoError(t, s.Bucket("b").Put(ctx, "k", "vb"))

	got, _, err := s.Bucket("a").Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "va", got)

	ok, err := s.Bucket("c").Has(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStateSurvivesReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.Bucket("frontier").Put(ctx, "k", "v"))
	require.NoError(t, s.Sync(ctx))
	require.NoError(t, s.Close())

	s, err = Open(dir, DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Bucket("frontier").Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", got)
}

func TestResetDropsAllBuckets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.Bucket("frontier").Put(ctx, "k", "v"))
	require.NoError(t, s.Close())

	s, err = Open(dir, Options{Reset: true, EnableWAL: true})
	require.NoError(t, err)
	defer s.Close()

	ok, err := s.Bucket("frontier").Has(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestForEachVisitsAllEntries(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir(), DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	b := s.Bucket("skip")
	require.NoError(t, b.Put(ctx, "k1", "v1"))
	require.NoError(t, b.Put(ctx, "k2", "v2"))

	seen := map[string]string{}
	require.NoError(t, b.ForEach(ctx, func(k, v string) error {
		seen[k] = v
		return nil
	}))
	require.Equal(t, map[string]string{"k1": "v1", "k2": "v2"}, seen)
}

func TestDeleteAbsentKeyIsNoOp(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir(), DefaultOptions())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Bucket("a").Delete(context.Background(), "ghost"))
}
