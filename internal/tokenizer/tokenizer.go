// Package tokenizer turns page content into lowercase alphanumeric tokens
// for frequency counting, duplicate fingerprinting, and the word-count gate.
package tokenizer

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/crawler"
)

// stopWords are excluded from token analytics. Whole-word matches only; a
// token like "abouts" passes.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a about above after again against all am an and any are arent as at
		be because been before being below between both but by cant cannot could couldnt
		did didnt do does doesnt doing dont down during each few for from further
		had hadnt has hasnt have havent having he hed hell hes her here heres hers herself
		him himself his how hows i id ill im ive if in into is isnt it its itself
		lets me more most mustnt my myself no nor not of off on once only or other
		ought our ours ourselves out over own same shant she shed shell shes should
		shouldnt so some such than that thats the their theirs them themselves then
		there theres these they theyd theyll theyre theyve this those through to too
		under until up very was wasnt we wed well were weve werent what whats when
		whens where wheres which while who whos whom why whys with wont would wouldnt
		you youd youll youre youve your yours yourself yourselves`) {
		stopWords[w] = struct{}{}
	}
}

// Tokenizer implements the crawler.Tokenizer interface over goquery text
// extraction.
type Tokenizer struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Tokenizer {
	return &Tokenizer{logger: logger}
}

// Tokenize extracts the visible text of resp and returns its alphanumeric
// tokens, lowercased, with stop words removed. A malformed page tokenizes to
// nothing rather than failing the pipeline.
func (t *Tokenizer) Tokenize(resp *crawler.Response) []string {
	return t.scan(resp, true)
}

// WordCount returns the number of alphanumeric words on the page, stop words
// included. The low-information gate uses this raw count so pages made of
// common words still register their length.
func (t *Tokenizer) WordCount(resp *crawler.Response) int {
	return len(t.scan(resp, false))
}

func (t *Tokenizer) scan(resp *crawler.Response, dropStopWords bool) []string {
	if resp == nil || len(resp.Body) == 0 {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		t.logger.Warn("tokenize: HTML parse failed",
			zap.String("url", resp.URL),
			zap.Error(err),
		)
		return nil
	}
	doc.Find("script, style, noscript").Remove()
	text := doc.Text()

	var tokens []string
	var current strings.Builder
	flush := func() {
		if current.Len() == 0 {
			return
		}
		word := current.String()
		current.Reset()
		if dropStopWords {
			if _, stop := stopWords[word]; stop {
				return
			}
		}
		tokens = append(tokens, word)
	}

	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			current.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			current.WriteRune(r + ('a' - 'A'))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// Frequencies folds a token stream into per-token counts for the duplicate
// detector.
func Frequencies(tokens []string) map[string]int {
	freqs := make(map[string]int, len(tokens))
	for _, token := range tokens {
		freqs[token]++
	}
	return freqs
}
