// Package citations turns raw provider evidence records into classified
// citations under a fixed time/size resolution budget.
//
// Evidence arrives as heterogeneous JSON: text-span-anchored joins
// (grounding supports, url_citation annotations) and anchor-less source
// records (grounding chunks, harvested search results). Classification is a
// fixed shape rule, never a content heuristic: a record with no text anchor
// is UNLINKED no matter how reputable its source looks.
package citations

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"

	"github.com/contestra/ai-ranker-v2-sub003/core"
)

// Budget bounds domain resolution for one evidence batch. Items beyond the
// cap or the deadline are retained with whatever information was already
// present, never dropped.
type Budget struct {
	MaxItems int
	Deadline time.Duration
}

// DefaultBudget mirrors the production defaults: 8 resolved items, 3s batch
// deadline.
var DefaultBudget = Budget{MaxItems: 8, Deadline: 3 * time.Second}

// Classifier classifies evidence batches. Safe for concurrent use.
type Classifier struct {
	budget      Budget
	resolver    *Resolver
	logger      *slog.Logger
	concurrency int64
}

// ClassifierOption mutates classifier construction.
type ClassifierOption func(*Classifier)

// WithBudget overrides the resolution budget.
func WithBudget(budget Budget) ClassifierOption {
	return func(c *Classifier) { c.budget = budget }
}

// WithResolver enables network unwrapping of redirector URLs.
func WithResolver(resolver *Resolver) ClassifierOption {
	return func(c *Classifier) { c.resolver = resolver }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) { c.logger = logger }
}

// NewClassifier constructs a Classifier.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		budget:      DefaultBudget,
		logger:      slog.Default(),
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.budget.MaxItems <= 0 {
		c.budget.MaxItems = DefaultBudget.MaxItems
	}
	if c.budget.Deadline <= 0 {
		c.budget.Deadline = DefaultBudget.Deadline
	}
	return c
}

// anchor fields that mark a record as a text-span join. Gemini grounding
// supports carry segment + groundingChunkIndices; OpenAI url_citation
// annotations carry start_index/end_index.
var anchorPaths = []string{
	"segment",
	"groundingChunkIndices",
	"anchor",
	"start_index",
	"startIndex",
}

var urlPaths = []string{
	"url",
	"uri",
	"web.uri",
	"web.url",
	"url_citation.url",
	"source.url",
	"retrievedContext.uri",
}

var titlePaths = []string{
	"title",
	"web.title",
	"url_citation.title",
	"source.title",
	"retrievedContext.title",
}

var sourceDomainPaths = []string{
	"source.domain",
	"domain",
	"publisher",
	"site_name",
	"web.domain",
}

var bareDomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*\.[a-z]{2,}$`)

// Classify classifies a batch of raw evidence records. Every record yields a
// citation; domain resolution is limited to the first MaxItems records and
// abandoned at the deadline, with the truncation flag set on the counts.
func (c *Classifier) Classify(ctx context.Context, items []json.RawMessage) ([]core.Citation, core.CitationCounts) {
	citations := make([]core.Citation, len(items))
	counts := core.CitationCounts{Total: len(items)}

	for i, item := range items {
		citations[i] = classifyShape(item)
		switch citations[i].Class {
		case core.CitationAnchored:
			counts.Anchored++
		default:
			counts.Unlinked++
		}
	}
	if len(items) == 0 {
		return citations, counts
	}

	resolveCount := len(items)
	if resolveCount > c.budget.MaxItems {
		resolveCount = c.budget.MaxItems
		counts.Truncated = true
	}

	ctx, cancel := context.WithTimeout(ctx, c.budget.Deadline)
	defer cancel()

	type resolved struct {
		index  int
		domain string
	}
	results := make(chan resolved, resolveCount)
	sem := semaphore.NewWeighted(c.concurrency)

	for i := 0; i < resolveCount; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			counts.Truncated = true
			c.logger.Debug("citation resolution budget exhausted",
				slog.Int("resolved", i), slog.Int("batch", len(items)))
			return citations, counts
		}
		go func(index int, item json.RawMessage) {
			defer sem.Release(1)
			results <- resolved{index: index, domain: c.resolveDomain(ctx, item)}
		}(i, items[i])
	}

	for received := 0; received < resolveCount; received++ {
		select {
		case r := <-results:
			if r.domain != "" {
				citations[r.index].SourceDomain = r.domain
			}
		case <-ctx.Done():
			// Abandon in-flight resolutions; those items keep their
			// last-known, possibly redirected, URL.
			counts.Truncated = true
			return citations, counts
		}
	}
	return citations, counts
}

// classifyShape extracts the cheap record-local fields: class, URL, title,
// redirect flag. No resolution work happens here.
func classifyShape(item json.RawMessage) core.Citation {
	body := string(item)
	citation := core.Citation{Class: core.CitationUnlinked}

	for _, path := range anchorPaths {
		if gjson.Get(body, path).Exists() {
			citation.Class = core.CitationAnchored
			break
		}
	}
	for _, path := range urlPaths {
		if v := gjson.Get(body, path); v.Exists() && v.String() != "" {
			citation.URL = v.String()
			break
		}
	}
	for _, path := range titlePaths {
		if v := gjson.Get(body, path); v.Exists() && v.String() != "" {
			citation.Title = v.String()
			break
		}
	}
	citation.IsRedirect = citation.URL != "" && IsRedirectorURL(citation.URL)
	return citation
}

// resolveDomain recovers the true source domain for one record, in fixed
// order: a non-redirector URL field on the record, then a title that is
// itself a bare domain, then nested source/publisher metadata. A redirector
// URL is unwrapped over the network only when a resolver is configured.
func (c *Classifier) resolveDomain(ctx context.Context, item json.RawMessage) string {
	body := string(item)

	var redirectURL string
	for _, path := range urlPaths {
		v := gjson.Get(body, path)
		if !v.Exists() || v.String() == "" {
			continue
		}
		if IsRedirectorURL(v.String()) {
			if redirectURL == "" {
				redirectURL = v.String()
			}
			continue
		}
		if host := hostOf(v.String()); host != "" {
			return host
		}
	}

	for _, path := range titlePaths {
		v := gjson.Get(body, path)
		if !v.Exists() {
			continue
		}
		title := strings.ToLower(strings.TrimSpace(v.String()))
		if bareDomainPattern.MatchString(title) {
			return strings.TrimPrefix(title, "www.")
		}
	}

	for _, path := range sourceDomainPaths {
		if v := gjson.Get(body, path); v.Exists() && v.String() != "" {
			domain := strings.ToLower(strings.TrimSpace(v.String()))
			if bareDomainPattern.MatchString(domain) {
				return strings.TrimPrefix(domain, "www.")
			}
		}
	}

	if redirectURL != "" && c.resolver != nil {
		if final, ok := c.resolver.Resolve(ctx, redirectURL); ok {
			return hostOf(final)
		}
	}
	return ""
}
