package report

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/frontier"
	"github.com/campuscrawl/campuscrawl/internal/stats"
	"github.com/campuscrawl/campuscrawl/internal/store"
)

// seedStore writes a small crawl's worth of state through the real components
// so the report reads exactly what a crawl would have produced.
func seedStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(t.TempDir(), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	fr, err := frontier.New(ctx, st.Bucket(store.BucketFrontier), zap.NewNop())
	require.NoError(t, err)
	for _, u := range []string{
		"http://ics.uci.edu/",
		"http://ics.uci.edu/about",
		"http://ics.uci.edu/about#team", // collapses with the previous entry
		"http://vision.ics.uci.edu/projects",
		"http://cs.uci.edu/huge.pdf",
	} {
		require.NoError(t, fr.Add(ctx, u))
	}

	an, err := stats.New(ctx, st.Bucket(store.BucketTokens), st.Bucket(store.BucketMaxRecord), st.Bucket(store.BucketSkips), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, an.RecordTokens(ctx, []string{"research", "research", "research", "campus", "campus", "lab"}))
	_, err = an.FoundNewMax(ctx, "http://ics.uci.edu/about", 321)
	require.NoError(t, err)
	require.NoError(t, an.RecordSkip(ctx, "http://cs.uci.edu/huge.pdf"))

	return st
}

func TestSummarize(t *testing.T) {
	st := seedStore(t)
	gen := New(st, zap.NewNop())

	summary, err := gen.Summarize(context.Background())
	require.NoError(t, err)

	// Five adds collapse to four entries, one of which was skipped.
	require.Equal(t, 3, summary.UniquePages)
	require.Equal(t, "http://ics.uci.edu/about", summary.LongestURL)
	require.Equal(t, 321, summary.LongestWords)

	require.Equal(t, []TokenCount{
		{Token: "research", Count: 3},
		{Token: "campus", Count: 2},
		{Token: "lab", Count: 1},
	}, summary.TopTokens)

	require.Equal(t, []SubdomainCount{
		{Host: "cs.uci.edu", Pages: 1},
		{Host: "ics.uci.edu", Pages: 2},
		{Host: "vision.ics.uci.edu", Pages: 1},
	}, summary.Subdomains)
}

func TestSummarizeEmptyStore(t *testing.T) {
	st, err := store.Open(t.TempDir(), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	summary, err := New(st, zap.NewNop()).Summarize(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, summary.UniquePages)
	require.Empty(t, summary.TopTokens)
	require.Empty(t, summary.Subdomains)
	require.Equal(t, "", summary.LongestURL)
}

func TestWriteFormat(t *testing.T) {
	st := seedStore(t)
	summary, err := New(st, zap.NewNop()).Summarize(context.Background())
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, summary.Write(&buf))
	out := buf.String()

	require.Contains(t, out, "Question 1: \n     There are 3 unique pages.")
	require.Contains(t, out, "Longest page url is http://ics.uci.edu/about with 321 words.")
	require.Contains(t, out, "     research -> 3")
	require.Contains(t, out, "     ics.uci.edu, 2")

	// Sections appear in order.
	for i := 1; i < 4; i++ {
		require.Less(t,
			strings.Index(out, fmt.Sprintf("Question %d", i)),
			strings.Index(out, fmt.Sprintf("Question %d", i+1)),
		)
	}
}

func TestTopTokensCapped(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(t.TempDir(), store.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	tokens := st.Bucket(store.BucketTokens)
	for i := 0; i < TopTokenCount+10; i++ {
		require.NoError(t, tokens.Put(ctx, fmt.Sprintf("token%03d", i), fmt.Sprintf("%d", i+1)))
	}

	summary, err := New(st, zap.NewNop()).Summarize(ctx)
	require.NoError(t, err)
	require.Len(t, summary.TopTokens, TopTokenCount)
	// Highest counts first.
	require.Equal(t, TopTokenCount+10, summary.TopTokens[0].Count)
}
