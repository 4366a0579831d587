// Package categories implements the category bootstrap loader: it fetches
// the external category tree, validates each node, and replaces the
// Category table with the result. It is a thin external collaborator, not
// part of the crawl core.
package categories

import (
	"context"
	"fmt"
	"strings"

	"github.com/wbparser/catalog-crawler/internal/catalog"
	"github.com/wbparser/catalog-crawler/pkg/logger"
)

// Fetcher is the subset of fetch.Client the loader needs.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, target interface{}) error
}

// Repository replaces the full set of stored categories.
type Repository interface {
	ReplaceCategories(ctx context.Context, categories []catalog.Category) error
}

// Source is one node of the upstream category tree feed, before
// validation.
type Source struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ParentID *int   `json:"parent_id"`
	URL      string `json:"url"`
	Shard    string `json:"shard"`
	Query    string `json:"query"`
	Children []int  `json:"childs"`
}

// Validate applies the upstream feed's structural constraints: the query
// string must look like a query (contain "="), the url must be absolute or
// site-relative, and neither shard nor query may contain Cyrillic
// characters or spaces.
func (s Source) Validate() error {
	if !strings.Contains(s.Query, "=") {
		return fmt.Errorf("category %d: query %q has no \"=\"", s.ID, s.Query)
	}
	if !strings.HasPrefix(s.URL, "/") && !strings.HasPrefix(s.URL, "https://") {
		return fmt.Errorf("category %d: url %q must start with \"/\" or \"https://\"", s.ID, s.URL)
	}
	if containsCyrillicOrSpace(s.Shard) {
		return fmt.Errorf("category %d: shard %q must not contain Cyrillic characters or spaces", s.ID, s.Shard)
	}
	if containsCyrillicOrSpace(s.Query) {
		return fmt.Errorf("category %d: query %q must not contain Cyrillic characters or spaces", s.ID, s.Query)
	}
	return nil
}

func containsCyrillicOrSpace(s string) bool {
	for _, r := range s {
		if r == ' ' || (r >= 0x0400 && r <= 0x04FF) {
			return true
		}
	}
	return false
}

func (s Source) toCategory() catalog.Category {
	return catalog.Category{
		ID:       s.ID,
		Name:     s.Name,
		ParentID: s.ParentID,
		URL:      s.URL,
		Shard:    s.Shard,
		Query:    s.Query,
		Children: s.Children,
	}
}

// Loader fetches and validates the category tree, then replaces the stored
// set.
type Loader struct {
	fetcher   Fetcher
	sourceURL string
	repo      Repository
	log       *logger.Logger
}

// New builds a Loader.
func New(fetcher Fetcher, sourceURL string, repo Repository, log *logger.Logger) *Loader {
	return &Loader{fetcher: fetcher, sourceURL: sourceURL, repo: repo, log: log}
}

// Load fetches the category tree feed and replaces the stored categories
// with every node that passes Validate. Nodes that fail validation are
// logged and dropped.
func (l *Loader) Load(ctx context.Context) error {
	var sources []Source
	if err := l.fetcher.GetJSON(ctx, l.sourceURL, &sources); err != nil {
		return fmt.Errorf("categories: fetch feed: %w", err)
	}

	valid := make([]catalog.Category, 0, len(sources))
	for _, s := range sources {
		if err := s.Validate(); err != nil {
			l.log.Warn("categories: dropping invalid category", "id", s.ID, "err", err)
			continue
		}
		valid = append(valid, s.toCategory())
	}

	return l.repo.ReplaceCategories(ctx, valid)
}
