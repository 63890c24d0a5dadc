package urlutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeDropsFragment(t *testing.T) {
	t.Parallel()

	a, err := Normalize("https://a.edu/x#foo")
	require.NoError(t, err)
	b, err := Normalize("https://a.edu/x#bar")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, "https://a.edu/x", a)
}

func TestNormalizeLowercasesSchemeAndHost(t *testing.T) {
	t.Parallel()

	got, err := Normalize("HTTPS://WWW.ICS.UCI.EDU/Path/Page")
	require.NoError(t, err)
	require.Equal(t, "https://www.ics.uci.edu/Path/Page", got)
}

func TestNormalizeStripsDefaultPorts(t *testing.T) {
	t.Parallel()

	got, err := Normalize("http://example.org:80/a")
	require.NoError(t, err)
	require.Equal(t, "http://example.org/a", got)

	got, err = Normalize("https://example.org:443/a")
	require.NoError(t, err)
	require.Equal(t, "https://example.org/a", got)
}

func TestHashStableAcrossEquivalentForms(t *testing.T) {
	t.Parallel()

	require.Equal(t, Hash("https://a.edu/x#foo"), Hash("https://a.edu/x#bar"))
	require.NotEqual(t, Hash("https://a.edu/x"), Hash("https://a.edu/y"))
	require.Len(t, Hash("https://a.edu/x"), 64)
}

func TestBaseAndHost(t *testing.T) {
	t.Parallel()

	base, err := Base("https://WWW.stat.uci.edu/wp-sitemap.xml")
	require.NoError(t, err)
	require.Equal(t, "https://www.stat.uci.edu", base)
	require.Equal(t, "www.stat.uci.edu", Host("https://WWW.stat.uci.edu/page"))
}

func TestIsXML(t *testing.T) {
	t.Parallel()

	require.True(t, IsXML("https://a.edu/wp-sitemap.XML"))
	require.False(t, IsXML("https://a.edu/page.html"))
}
