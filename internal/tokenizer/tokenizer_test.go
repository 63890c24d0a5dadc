package tokenizer

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/crawler"
)

func response(body string) *crawler.Response {
	return &crawler.Response{
		URL:        "http://ics.uci.edu/page",
		FinalURL:   "http://ics.uci.edu/page",
		StatusCode: 200,
		Headers:    http.Header{},
		Body:       []byte(body),
	}
}

func TestTokenizeLowercasesAndSplits(t *testing.T) {
	tok := New(zap.NewNop())

	tokens := tok.Tokenize(response("<html><body><p>Machine Learning, CS-221!</p></body></html>"))
	require.Equal(t, []string{"machine", "learning", "cs", "221"}, tokens)
}

func TestTokenizeDropsStopWords(t *testing.T) {
	tok := New(zap.NewNop())

	tokens := tok.Tokenize(response("<p>The lab is about graphics and the rendering of scenes</p>"))
	require.Equal(t, []string{"lab", "graphics", "rendering", "scenes"}, tokens)
}

func TestTokenizeIgnoresMarkupAndScripts(t *testing.T) {
	tok := New(zap.NewNop())

	tokens := tok.Tokenize(response(`
		<html><head>
			<style>body { color: red; }</style>
			<script>var hidden = "donotcount";</script>
		</head><body>
			<div class="menu">visible</div>
		</body></html>`))
	require.Equal(t, []string{"visible"}, tokens)
}

func TestTokenizeEmptyAndNil(t *testing.T) {
	tok := New(zap.NewNop())

	require.Empty(t, tok.Tokenize(nil))
	require.Empty(t, tok.Tokenize(response("")))
}

func TestWordCountKeepsStopWords(t *testing.T) {
	tok := New(zap.NewNop())

	resp := response("<p>this is a page about the campus</p>")
	require.Equal(t, 7, tok.WordCount(resp))
	require.Equal(t, []string{"page", "campus"}, tok.Tokenize(resp))
}

func TestFrequencies(t *testing.T) {
	freqs := Frequencies([]string{"go", "crawler", "go", "go"})
	require.Equal(t, map[string]int{"go": 3, "crawler": 1}, freqs)
}
