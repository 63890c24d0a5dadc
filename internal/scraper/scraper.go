// Package scraper extracts outbound links from fetched pages and applies the
// domain-specific URL validity policy.
package scraper

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/crawler"
)

// Binary and media payloads the crawler has no use for.
var blockedExtensions = regexp.MustCompile(
	`.*\.(css|js|bmp|gif|jpe?g|ico` +
		`|png|tiff?|mid|mp2|mp3|mp4` +
		`|wav|avi|mov|mpeg|ram|m4v|mkv|ogg|ogv|pdf|war` +
		`|ps|eps|tex|ppt|pptx|doc|docx|xls|xlsx|names` +
		`|data|dat|exe|bz2|tar|msi|bin|7z|psd|dmg|iso|ppsx` +
		`|epub|dll|cnf|tgz|sha1` +
		`|thmx|mso|arff|rtf|jar|csv` +
		`|rm|smil|wmv|swf|wma|zip|rar|gz)$`)

// Scraper implements the crawler.LinkExtractor interface with goquery parsing
// and an allow-listed-domain validity policy.
type Scraper struct {
	robots         crawler.Robots
	allowedDomains map[string]struct{}
	logger         *zap.Logger
}

// New builds a Scraper restricted to the given domain suffixes. A candidate
// URL is in scope when the last three labels of its hostname equal one of the
// suffixes exactly.
func New(robots crawler.Robots, allowedDomains []string, logger *zap.Logger) *Scraper {
	allowed := make(map[string]struct{}, len(allowedDomains))
	for _, d := range allowedDomains {
		allowed[strings.ToLower(strings.TrimPrefix(d, "."))] = struct{}{}
	}
	return &Scraper{
		robots:         robots,
		allowedDomains: allowed,
		logger:         logger,
	}
}

// ExtractLinks returns the outbound candidate URLs of resp, resolved to
// absolute form against pageURL. Dead responses yield no links: a 200 with an
// empty body, a 204, and any status of 400 or above all return an empty
// slice. A redirect yields only its Location target.
func (s *Scraper) ExtractLinks(pageURL string, resp *crawler.Response) []string {
	if resp == nil {
		return nil
	}
	if resp.StatusCode == 200 && len(resp.Body) == 0 {
		return nil
	}
	if resp.StatusCode == 204 || resp.StatusCode >= 400 {
		return nil
	}
	if resp.StatusCode >= 300 {
		if loc := resp.Headers.Get("Location"); loc != "" {
			if abs, ok := s.resolve(resp.FinalURL, loc); ok {
				return []string{abs}
			}
		}
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		s.logger.Warn("HTML parse failed, treating page as linkless",
			zap.String("url", pageURL),
			zap.Error(err),
		)
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		if abs, ok := s.resolve(pageURL, href); ok {
			links = append(links, abs)
		}
	})
	return links
}

// IsValidLink reports whether url is worth crawling: an http(s) URL inside
// one of the allowed domains, permitted by robots.txt, and not pointing at a
// blocked file extension.
func (s *Scraper) IsValidLink(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	labels := strings.Split(strings.ToLower(parsed.Hostname()), ".")
	if len(labels) > 3 {
		labels = labels[len(labels)-3:]
	}
	if _, ok := s.allowedDomains[strings.Join(labels, ".")]; !ok {
		return false
	}

	if !s.robots.CanFetch(ctx, rawURL) {
		return false
	}

	return !blockedExtensions.MatchString(strings.ToLower(parsed.Path))
}

func (s *Scraper) resolve(base, href string) (string, bool) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	return baseURL.ResolveReference(ref).String(), true
}
