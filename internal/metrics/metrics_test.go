package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	require.Equal(t, "www.ics.uci.edu", SanitizeSite("https://WWW.ICS.UCI.EDU/page"))
	require.Equal(t, "example.org", SanitizeSite("example.org/path"))
	require.Equal(t, "unknown", SanitizeSite("://not a url"))
}

// Collectors must be live at import time: components observe from their
// constructors and hot paths, with no setup call in between.
func TestObserversReadyWithoutSetup(t *testing.T) {
	ObservePage("https://www.ics.uci.edu/a", "crawled", 1024)
	ObservePage("https://www.ics.uci.edu/b", "skipped", 0)
	ObserveSkip("duplicate")
	ObservePolitenessWait("www.ics.uci.edu", 500*time.Millisecond)
	ObserveRobotsFetch("ok")
	ObserveDuplicate()
	SetFrontierPending(42)
	IncActiveWorkers()
	DecActiveWorkers()
}
