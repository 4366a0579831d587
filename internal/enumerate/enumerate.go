// Package enumerate implements the Identifier Enumerator: for one category,
// it walks the upstream catalog and emits batches of product ids onto the
// IDs queue, working around the upstream's fixed 100-page result cap by
// recursively partitioning the category by price range and, when price
// alone isn't enough, by brand.
package enumerate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/wbparser/catalog-crawler/internal/catalog"
	"github.com/wbparser/catalog-crawler/internal/config"
	"github.com/wbparser/catalog-crawler/pkg/logger"
)

// Fetcher is the subset of fetch.Client the Enumerator needs. Declaring it
// as an interface here keeps this package independently testable.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, target interface{}) error
}

// Enumerator walks one category's result set and emits id batches.
type Enumerator struct {
	fetcher   Fetcher
	cfg       config.Enumerate
	endpoints config.Endpoints
	log       *logger.Logger
}

// New builds an Enumerator.
func New(fetcher Fetcher, cfg config.Enumerate, endpoints config.Endpoints, log *logger.Logger) *Enumerator {
	return &Enumerator{fetcher: fetcher, cfg: cfg, endpoints: endpoints, log: log}
}

// Enumerate walks cat and sends batches of up to cfg.MaxItemsInRequest
// product ids to out; the Card Fetcher joins each batch with ";". It
// returns once the category has been fully partitioned, or on the first
// fatal upstream error.
func (e *Enumerator) Enumerate(ctx context.Context, cat catalog.Category, out chan<- []int) error {
	maxPrice, err := e.maxPrice(ctx, cat)
	if err != nil {
		return fmt.Errorf("enumerate: category %d: %w", cat.ID, err)
	}
	return e.basicParsing(ctx, cat, 0, maxPrice, out)
}

// basicParsing is the recursive price-range partitioning step. It probes
// the last page of the current [minPr, maxPr) slice. If that page holds at
// most LastPageThreshold products, the slice is traversed page by page
// directly. Otherwise the slice may hold more results than the 100-page cap
// can surface, so it bisects the price range (rounded to the nearest 10,000)
// and recurses; when the lower half would be narrower than MinPriceRange,
// it falls through to brand partitioning instead.
func (e *Enumerator) basicParsing(ctx context.Context, cat catalog.Category, minPr, maxPr int, out chan<- []int) error {
	query := e.priceQuery(cat, minPr, maxPr)

	lastPageIDs, err := e.fetchPage(ctx, query, e.cfg.MaxPage)
	if err != nil {
		return err
	}

	if len(lastPageIDs) <= e.cfg.LastPageThreshold {
		return e.getItemsIDsChunk(ctx, cat, query, out)
	}

	rndAvg := roundToNearest10000((maxPr+minPr)/2 + 100)
	if rndAvg-minPr >= e.cfg.MinPriceRange {
		if err := e.basicParsing(ctx, cat, minPr, rndAvg, out); err != nil {
			return err
		}
		return e.basicParsing(ctx, cat, rndAvg, maxPr, out)
	}

	return e.parseByBrand(ctx, cat, minPr, maxPr, out)
}

// parseByBrand fetches the brand facet for [minPr, maxPr) and re-partitions
// by brand: brands with more results than MaxItemsInBrandsFilter are queried
// alone, the rest are batched MaxBrandsInRequest at a time.
func (e *Enumerator) parseByBrand(ctx context.Context, cat catalog.Category, minPr, maxPr int, out chan<- []int) error {
	brandURL := e.endpoints.BaseURL + cat.Shard + "/v4/filters?filters=fbrand&" +
		cat.Query + e.endpoints.QueryParams + priceLimitQuery(minPr, maxPr)

	var resp brandFilterResponse
	if err := e.fetcher.GetJSON(ctx, brandURL, &resp); err != nil {
		return err
	}

	var brands []brandFilterItem
	if len(resp.Data.Filters) > 0 {
		brands = resp.Data.Filters[0].Items
	}

	query := e.priceQuery(cat, minPr, maxPr)

	var batch []int
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		q := query + "&fbrand=" + joinInts(batch)
		defer func() { batch = nil }()
		return e.getItemsIDsChunk(ctx, cat, q, out)
	}

	for _, b := range brands {
		if b.Count > e.cfg.MaxItemsInBrandsFilter {
			if err := flush(); err != nil {
				return err
			}
			if err := e.getItemsIDsChunk(ctx, cat, query+"&fbrand="+joinInts([]int{b.ID}), out); err != nil {
				return err
			}
			continue
		}
		batch = append(batch, b.ID)
		if len(batch) == e.cfg.MaxBrandsInRequest {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// getItemsIDsChunk traverses every page of query across all sort orders,
// deduplicates into a set, and emits it to out in MaxItemsInRequest-sized
// batches.
func (e *Enumerator) getItemsIDsChunk(ctx context.Context, cat catalog.Category, query string, out chan<- []int) error {
	ids, err := e.traversePages(ctx, query, "&sort=popular")
	if err != nil {
		return err
	}

	flat := make([]int, 0, len(ids))
	for id := range ids {
		flat = append(flat, id)
	}

	for start := 0; start < len(flat); start += e.cfg.MaxItemsInRequest {
		end := start + e.cfg.MaxItemsInRequest
		if end > len(flat) {
			end = len(flat)
		}
		select {
		case out <- flat[start:end]:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// traversePages walks pages 1..MaxPage for query+sorting, stopping early on
// an empty page. When sorting is the primary "&sort=popular" order, it also
// recurses into "&sort=pricedown" and "&sort=priceup" and unions their ids
// in, since each sort order can surface ids the others miss within the same
// 100-page window.
func (e *Enumerator) traversePages(ctx context.Context, query, sorting string) (map[int]struct{}, error) {
	ids := make(map[int]struct{})
	for page := 1; page <= e.cfg.MaxPage; page++ {
		pageIDs, err := e.fetchPage(ctx, query+sorting, page)
		if err != nil {
			return nil, err
		}
		if len(pageIDs) == 0 {
			break
		}
		for _, id := range pageIDs {
			ids[id] = struct{}{}
		}
	}

	if sorting == "&sort=popular" {
		for _, other := range []string{"&sort=pricedown", "&sort=priceup"} {
			more, err := e.traversePages(ctx, query, other)
			if err != nil {
				return nil, err
			}
			for id := range more {
				ids[id] = struct{}{}
			}
		}
	}

	return ids, nil
}

// fetchPage fetches one catalog listing page and returns its product ids.
// An empty body (a *catalog.EmptyResponseError, once the fetcher's retries
// are spent) is treated as end-of-results, not an error: it is a routine
// termination signal for page traversal, unlike the card fetcher's
// empty-page handling. A malformed body is returned as an error.
func (e *Enumerator) fetchPage(ctx context.Context, query string, page int) ([]int, error) {
	url := fmt.Sprintf("%s%s&page=%d", e.endpoints.BaseURL, query, page)

	var resp catalogPageResponse
	if err := e.fetcher.GetJSON(ctx, url, &resp); err != nil {
		var empty *catalog.EmptyResponseError
		if errors.As(err, &empty) {
			return nil, nil
		}
		return nil, err
	}

	ids := make([]int, len(resp.Data.Products))
	for i, p := range resp.Data.Products {
		ids[i] = p.ID
	}
	return ids, nil
}

// priceQuery builds the catalog-listing query for [minPr, maxPr), relative
// to BaseURL (fetchPage prepends that). Shard, QueryParams and Query order
// matches the upstream catalog endpoint's accepted shape.
func (e *Enumerator) priceQuery(cat catalog.Category, minPr, maxPr int) string {
	return fmt.Sprintf("%s/catalog?%s&%s%s", cat.Shard, e.endpoints.QueryParams, cat.Query, priceLimitQuery(minPr, maxPr))
}

func priceLimitQuery(minPr, maxPr int) string {
	return fmt.Sprintf("&priceU=%d;%d", minPr, maxPr)
}

func roundToNearest10000(x int) int {
	return int(math.Round(float64(x)/10000)) * 10000
}

func joinInts(ids []int) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ";"
		}
		out += fmt.Sprintf("%d", id)
	}
	return out
}

type catalogPageResponse struct {
	Data struct {
		Products []struct {
			ID int `json:"id"`
		} `json:"products"`
	} `json:"data"`
}

type brandFilterItem struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// brandFilterResponse is the v4/filters?filters=fbrand response shape: a
// single filter entry (the brand facet, since the request asked for only
// that filter) holding the candidate brands for the current price slice.
type brandFilterResponse struct {
	Data struct {
		Filters []struct {
			Items []brandFilterItem `json:"items"`
		} `json:"filters"`
	} `json:"data"`
}

// priceFilterResponse is the v4/filters response shape: a list of filter
// facets, one of which (key == "priceU") carries the category's maximum
// price.
type priceFilterResponse struct {
	Data struct {
		Filters []struct {
			Key       string `json:"key"`
			MaxPriceU int    `json:"maxPriceU"`
		} `json:"filters"`
	} `json:"data"`
}

func (e *Enumerator) maxPrice(ctx context.Context, cat catalog.Category) (int, error) {
	url := e.endpoints.BaseURL + cat.Shard + "/v4/filters?" + cat.Query + e.endpoints.QueryParams

	var resp priceFilterResponse
	if err := e.fetcher.GetJSON(ctx, url, &resp); err != nil {
		return 0, err
	}
	for _, f := range resp.Data.Filters {
		if f.Key == "priceU" {
			return f.MaxPriceU, nil
		}
	}
	return 0, &catalog.EmptyResponseError{URL: url}
}
