package scraper

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/crawler"
)

type allowAllRobots struct {
	denied map[string]bool
}

func (r *allowAllRobots) CanFetch(ctx context.Context, url string) bool { return !r.denied[url] }

func (r *allowAllRobots) CrawlDelay(ctx context.Context, url string) time.Duration { return 0 }

func (r *allowAllRobots) Sitemaps(ctx context.Context, url string) []string { return nil }

func (r *allowAllRobots) ParseSitemap(resp *crawler.Response) []string { return nil }

var testDomains = []string{"ics.uci.edu", "cs.uci.edu", "informatics.uci.edu", "stat.uci.edu"}

func newScraper(denied ...string) *Scraper {
	robots := &allowAllRobots{denied: make(map[string]bool)}
	for _, d := range denied {
		robots.denied[d] = true
	}
	return New(robots, testDomains, zap.NewNop())
}

func htmlResponse(pageURL string, status int, body string) *crawler.Response {
	return &crawler.Response{
		URL:        pageURL,
		FinalURL:   pageURL,
		StatusCode: status,
		Headers:    http.Header{},
		Body:       []byte(body),
	}
}

func TestExtractLinksResolvesRelative(t *testing.T) {
	s := newScraper()
	resp := htmlResponse("http://ics.uci.edu/a/b", 200, `
		<html><body>
			<a href="/root">root</a>
			<a href="sibling.html">sibling</a>
			<a href="http://cs.uci.edu/other">absolute</a>
			<a href="">empty</a>
			<p>no link here</p>
		</body></html>`)

	links := s.ExtractLinks("http://ics.uci.edu/a/b", resp)
	require.Equal(t, []string{
		"http://ics.uci.edu/root",
		"http://ics.uci.edu/a/sibling.html",
		"http://cs.uci.edu/other",
	}, links)
}

func TestExtractLinksDeadResponses(t *testing.T) {
	s := newScraper()

	require.Empty(t, s.ExtractLinks("http://ics.uci.edu/", htmlResponse("http://ics.uci.edu/", 200, "")))
	require.Empty(t, s.ExtractLinks("http://ics.uci.edu/", htmlResponse("http://ics.uci.edu/", 204, "ignored")))
	require.Empty(t, s.ExtractLinks("http://ics.uci.edu/", htmlResponse("http://ics.uci.edu/", 404, "<a href='/x'>x</a>")))
	require.Empty(t, s.ExtractLinks("http://ics.uci.edu/", htmlResponse("http://ics.uci.edu/", 500, "<a href='/x'>x</a>")))
	require.Empty(t, s.ExtractLinks("http://ics.uci.edu/", nil))
}

func TestExtractLinksRedirectLocation(t *testing.T) {
	s := newScraper()
	resp := htmlResponse("http://ics.uci.edu/old", 301, "")
	resp.Headers.Set("Location", "/moved/here")

	require.Equal(t, []string{"http://ics.uci.edu/moved/here"}, s.ExtractLinks("http://ics.uci.edu/old", resp))

	// A redirect with no Location header has nowhere to go.
	bare := htmlResponse("http://ics.uci.edu/old", 302, "")
	require.Empty(t, s.ExtractLinks("http://ics.uci.edu/old", bare))
}

func TestExtractLinksMalformedHTML(t *testing.T) {
	s := newScraper()
	resp := htmlResponse("http://ics.uci.edu/", 200, "<a href='/ok'><<<>>></a <a href=")

	// The tolerant parser still finds what it can; the call must not panic
	// or error out.
	links := s.ExtractLinks("http://ics.uci.edu/", resp)
	require.Contains(t, links, "http://ics.uci.edu/ok")
}

func TestIsValidLinkDomainPolicy(t *testing.T) {
	s := newScraper()
	ctx := context.Background()

	require.True(t, s.IsValidLink(ctx, "http://ics.uci.edu/page"))
	require.True(t, s.IsValidLink(ctx, "https://vision.ics.uci.edu/research"))
	require.True(t, s.IsValidLink(ctx, "https://www.cs.uci.edu/"))
	require.True(t, s.IsValidLink(ctx, "http://stat.uci.edu/courses"))

	require.False(t, s.IsValidLink(ctx, "http://uci.edu/"))
	require.False(t, s.IsValidLink(ctx, "http://today.uci.edu/department/information_computer_sciences/"))
	require.False(t, s.IsValidLink(ctx, "http://example.com/ics.uci.edu"))
	require.False(t, s.IsValidLink(ctx, "http://ics.uci.edu.evil.com/"))
}

func TestIsValidLinkSchemeAndExtension(t *testing.T) {
	s := newScraper()
	ctx := context.Background()

	require.False(t, s.IsValidLink(ctx, "ftp://ics.uci.edu/file"))
	require.False(t, s.IsValidLink(ctx, "mailto:someone@ics.uci.edu"))

	require.False(t, s.IsValidLink(ctx, "http://ics.uci.edu/slides.PDF"))
	require.False(t, s.IsValidLink(ctx, "http://ics.uci.edu/pics/photo.jpeg"))
	require.False(t, s.IsValidLink(ctx, "http://ics.uci.edu/archive.tar"))
	require.True(t, s.IsValidLink(ctx, "http://ics.uci.edu/paper.html"))
	// Extension filtering applies to the path, not the query.
	require.True(t, s.IsValidLink(ctx, "http://ics.uci.edu/view?file=a.pdf"))
}

func TestIsValidLinkRespectsRobots(t *testing.T) {
	blocked := "http://ics.uci.edu/private"
	s := newScraper(blocked)
	ctx := context.Background()

	require.False(t, s.IsValidLink(ctx, blocked))
	require.True(t, s.IsValidLink(ctx, "http://ics.uci.edu/public"))
}
