// Package normalize implements the Normalizer: it turns one upstream card
// payload into the relational tuple (Brand, Item, Article, Colors,
// ArticleHistory, per-size stock) the Persister writes, validating the
// payload's shape along the way.
package normalize

import (
	"time"

	"github.com/wbparser/catalog-crawler/internal/cards"
	"github.com/wbparser/catalog-crawler/internal/catalog"
)

// Normalize validates and converts one upstream product payload, belonging
// to categoryID, into a catalog.Card. history.Timestamp is set to now for
// every card in a crawl so that ArticleHistory rows from the same crawl
// share a timestamp.
func Normalize(categoryID int, p cards.Product, now time.Time) (catalog.Card, error) {
	if p.ID == 0 {
		return catalog.Card{}, &catalog.ValidationError{ItemID: p.ID, Field: "id", Reason: "missing or zero product id"}
	}
	if p.Root == 0 {
		return catalog.Card{}, &catalog.ValidationError{ItemID: p.ID, Field: "root", Reason: "missing or zero item root id"}
	}
	if p.BrandID == 0 {
		return catalog.Card{}, &catalog.ValidationError{ItemID: p.ID, Field: "brandId", Reason: "missing brand id"}
	}
	if len(p.Colors) == 0 {
		return catalog.Card{}, &catalog.ValidationError{ItemID: p.ID, Field: "colors", Reason: "at least one color is required"}
	}

	colors := make([]catalog.Color, len(p.Colors))
	for i, c := range p.Colors {
		colors[i] = catalog.Color{ID: c.ID, Name: c.Name}
	}

	articleColorID := colors[0].ID
	if len(colors) > 1 {
		articleColorID = catalog.MultiColorID
	}

	sizeStock := make(map[catalog.Size]int, len(p.Sizes))
	for _, s := range p.Sizes {
		size := catalog.Size{Name: s.Name}
		qty := 0
		for _, stock := range s.Stocks {
			qty += stock.Qty
		}
		sizeStock[size] += qty
	}

	return catalog.Card{
		Brand: catalog.Brand{ID: p.BrandID, Name: p.Brand},
		Item: catalog.Item{
			ID:         p.Root,
			CategoryID: categoryID,
			Name:       p.Name,
			BrandID:    p.BrandID,
		},
		Article: catalog.Article{
			ID:      p.ID,
			ItemID:  p.Root,
			ColorID: articleColorID,
		},
		Colors: colors,
		History: catalog.ArticleHistory{
			Timestamp:         now,
			PriceFull:         p.PriceU,
			PriceWithDiscount: p.SalePrice,
			Sale:              p.Sale,
			Rating:            p.Rating,
			Feedbacks:         p.Feedbacks,
		},
		SizeStock: sizeStock,
	}, nil
}
