// Package cards implements the Card Fetcher: it turns batches of product
// ids from the Identifier Enumerator into full product payloads by calling
// the upstream card-detail endpoint, and hands them to the Normalizer.
package cards

import (
	"context"
	"errors"
	"fmt"

	"github.com/wbparser/catalog-crawler/internal/catalog"
	"github.com/wbparser/catalog-crawler/internal/config"
	"github.com/wbparser/catalog-crawler/pkg/logger"
)

// Fetcher is the subset of fetch.Client the Card Fetcher needs.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, target interface{}) error
}

// IDBatch is one unit of work from the IDs queue: a category and a batch of
// product ids to resolve into full cards.
type IDBatch struct {
	CategoryID int
	IDs        []int
}

// Batch is one unit of work for the cards queue: the raw product payloads
// fetched for one IDBatch.
type Batch struct {
	CategoryID int
	Products   []Product
}

// Product is the upstream card payload for one product, as needed by the
// Normalizer. ID identifies this article (one color variant); Root
// identifies the item group the article belongs to, shared by every color
// variant of the same product.
type Product struct {
	ID        int           `json:"id"`
	Root      int           `json:"root"`
	Name      string        `json:"name"`
	Brand     string        `json:"brand"`
	BrandID   int           `json:"brandId"`
	Colors    []ColorRef    `json:"colors"`
	PriceU    int           `json:"priceU"`
	SalePrice int           `json:"salePriceU"`
	Sale      int           `json:"sale"`
	Rating    float64       `json:"rating"`
	Feedbacks int           `json:"feedbacks"`
	Sizes     []ProductSize `json:"sizes"`
}

// ColorRef is one color entry on a card payload.
type ColorRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ProductSize is one size variant of a product, with its stock entries.
type ProductSize struct {
	Name   string  `json:"name"`
	Stocks []Stock `json:"stocks"`
}

// Stock is one warehouse's available quantity for a size.
type Stock struct {
	Qty int `json:"qty"`
}

type cardResponse struct {
	Data struct {
		Products []Product `json:"products"`
	} `json:"data"`
}

// Client fetches card batches from the upstream.
type Client struct {
	fetcher   Fetcher
	endpoints config.Endpoints
	log       *logger.Logger
}

// New builds a Client.
func New(fetcher Fetcher, endpoints config.Endpoints, log *logger.Logger) *Client {
	return &Client{fetcher: fetcher, endpoints: endpoints, log: log}
}

// Run pulls IDBatches from in until it is closed or ctx is cancelled,
// fetching cards for each and sending non-empty results to out. It returns
// the first fatal error (an exhausted retry budget); an empty or malformed
// card page is logged and dropped rather than treated as fatal.
func (c *Client) Run(ctx context.Context, in <-chan IDBatch, out chan<- Batch) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-in:
			if !ok {
				return nil
			}
			result, got, err := c.FetchCards(ctx, batch)
			if err != nil {
				return err
			}
			if !got {
				continue
			}
			select {
			case out <- result:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// FetchCards resolves one IDBatch into a Batch of product payloads. The
// bool result is false when the page was empty or malformed; that is
// logged and treated as a dropped page, not an error.
func (c *Client) FetchCards(ctx context.Context, batch IDBatch) (Batch, bool, error) {
	// CardURL already carries spp/QUERY_PARAMS and a trailing "&nm=" (see
	// config.Defaults), so the id list is appended directly.
	url := c.endpoints.CardURL + joinInts(batch.IDs)

	var resp cardResponse
	if err := c.fetcher.GetJSON(ctx, url, &resp); err != nil {
		var upstreamErr *catalog.UpstreamUnavailable
		if errors.As(err, &upstreamErr) {
			return Batch{}, false, err
		}
		c.log.Warn("cards: fetch failed, dropping page", "category", batch.CategoryID, "err", err)
		return Batch{}, false, nil
	}

	if len(resp.Data.Products) == 0 {
		c.log.Warn("cards: empty card page, dropping", "category", batch.CategoryID, "ids", len(batch.IDs))
		return Batch{}, false, nil
	}

	return Batch{CategoryID: batch.CategoryID, Products: resp.Data.Products}, true, nil
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
