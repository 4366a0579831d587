// Package catalog holds the relational data model produced by the crawler:
// categories, brands, colors, items, articles, sizes, and the per-crawl
// history rows that get appended rather than overwritten.
package catalog

import (
	"strings"
	"time"
)

// MultiColorID is the sentinel color id assigned to an article that lists
// more than one color. The upstream catalog has no real color with this id.
const MultiColorID = 999999

// Category is a node in the crawl target tree, sourced from an external
// category-tree feed (see internal/categories).
type Category struct {
	ID       int
	Name     string
	ParentID *int
	URL      string
	Shard    string
	Query    string
	Children []int
}

// Crawlable reports whether this category may be enqueued for crawling. A
// category with no shard carries no upstream catalog partition to query, and
// shards containing "blackhole" or "preset" are upstream's own markers for
// sinks that never surface real listings.
func (c Category) Crawlable() bool {
	return c.Shard != "" && !strings.Contains(c.Shard, "blackhole") && !strings.Contains(c.Shard, "preset")
}

// Brand is a reference entity, identified by the upstream's brand id.
type Brand struct {
	ID   int
	Name string
}

// Color is a reference entity, identified by the upstream's color id.
// MultiColorID is reserved for articles with more than one color.
type Color struct {
	ID   int
	Name string
}

// Item is the upstream "goods" entity: a single product under a category,
// owned by a brand.
type Item struct {
	ID         int
	CategoryID int
	Name       string
	BrandID    int
}

// Article is a purchasable variant of an Item: one color, tracked across
// crawls via ArticleHistory rows. ID is the upstream article id; ItemID is
// the upstream root id shared by every color variant of the same Item.
type Article struct {
	ID      int
	ItemID  int
	ColorID int
}

// Size is a reference entity identified by its name (e.g. "42", "L"). ID is
// the surrogate key the database assigns on first insert.
type Size struct {
	ID   int
	Name string
}

// ArticleHistory is a point-in-time snapshot of an article's price and
// popularity signals. A new row is always inserted, never updated in place,
// so the table accumulates a time series per article.
type ArticleHistory struct {
	ID                int
	ArticleID         int
	Timestamp         time.Time
	PriceFull         int
	PriceWithDiscount int
	Sale              int
	Rating            float64
	Feedbacks         int
}

// HistorySizeRelation records, for one ArticleHistory snapshot, the stock
// quantity available in one size at that point in time.
type HistorySizeRelation struct {
	HistoryID int
	SizeID    int
	Amount    int
}

// Card is the normalized, pre-persistence shape the Normalizer builds from
// one upstream product payload: everything the Persister needs for one
// get-or-insert transaction, plus the per-size stock quantities for that
// snapshot.
type Card struct {
	Brand     Brand
	Item      Item
	Article   Article
	Colors    []Color
	History   ArticleHistory
	SizeStock map[Size]int
}
