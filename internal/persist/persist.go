// Package persist implements the Persister: one get-or-insert transaction
// per normalized card. Reference entities (Brand, Color, Item, Article,
// Size) are inserted only if absent and never overwritten; ArticleHistory
// and HistorySizeRelation rows are always inserted fresh, building a time
// series per article.
package persist

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/wbparser/catalog-crawler/internal/catalog"
	"github.com/wbparser/catalog-crawler/internal/metrics"
	"github.com/wbparser/catalog-crawler/pkg/logger"
)

// DBPool is the subset of *pgxpool.Pool the Persister needs. Declaring it
// as an interface lets tests substitute pgxmock.
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Persister writes normalized cards to Postgres.
type Persister struct {
	db  DBPool
	log *logger.Logger
}

// New builds a Persister.
func New(db DBPool, log *logger.Logger) *Persister {
	return &Persister{db: db, log: log}
}

// PersistCard writes one card inside a single transaction: colors, brand,
// item and article are get-or-insert; a new ArticleHistory row is always
// appended, along with one HistorySizeRelation row per size present in the
// card's stock snapshot. On any failure the transaction is rolled back and
// a *catalog.PersistenceError is returned.
func (p *Persister) PersistCard(ctx context.Context, card catalog.Card) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		metrics.PersistErrorsTotal.Inc()
		return &catalog.PersistenceError{ItemID: card.Item.ID, Op: "begin", Cause: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	if err := p.upsertColors(ctx, tx, card.Colors); err != nil {
		metrics.PersistErrorsTotal.Inc()
		return &catalog.PersistenceError{ItemID: card.Item.ID, Op: "upsert colors", Cause: err}
	}
	if err := p.upsertBrand(ctx, tx, card.Brand); err != nil {
		metrics.PersistErrorsTotal.Inc()
		return &catalog.PersistenceError{ItemID: card.Item.ID, Op: "upsert brand", Cause: err}
	}
	if err := p.upsertItem(ctx, tx, card.Item); err != nil {
		metrics.PersistErrorsTotal.Inc()
		return &catalog.PersistenceError{ItemID: card.Item.ID, Op: "upsert item", Cause: err}
	}
	if err := p.upsertArticle(ctx, tx, card.Article); err != nil {
		metrics.PersistErrorsTotal.Inc()
		return &catalog.PersistenceError{ItemID: card.Item.ID, Op: "upsert article", Cause: err}
	}

	historyID, err := p.insertHistory(ctx, tx, card.Article.ID, card.History)
	if err != nil {
		metrics.PersistErrorsTotal.Inc()
		return &catalog.PersistenceError{ItemID: card.Item.ID, Op: "insert history", Cause: err}
	}

	for size, qty := range card.SizeStock {
		sizeID, err := p.getOrInsertSize(ctx, tx, size)
		if err != nil {
			metrics.PersistErrorsTotal.Inc()
			return &catalog.PersistenceError{ItemID: card.Item.ID, Op: "upsert size", Cause: err}
		}
		if err := p.insertHistorySize(ctx, tx, historyID, sizeID, qty); err != nil {
			metrics.PersistErrorsTotal.Inc()
			return &catalog.PersistenceError{ItemID: card.Item.ID, Op: "insert history size relation", Cause: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		metrics.PersistErrorsTotal.Inc()
		return &catalog.PersistenceError{ItemID: card.Item.ID, Op: "commit", Cause: err}
	}

	metrics.ArticleHistoryRowsTotal.Inc()
	return nil
}

func (p *Persister) upsertColors(ctx context.Context, tx pgx.Tx, colors []catalog.Color) error {
	for _, c := range colors {
		if c.ID == catalog.MultiColorID {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO colors (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING`, c.ID, c.Name); err != nil {
			return err
		}
	}
	return nil
}

func (p *Persister) upsertBrand(ctx context.Context, tx pgx.Tx, brand catalog.Brand) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO brands (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`, brand.ID, brand.Name)
	return err
}

func (p *Persister) upsertItem(ctx context.Context, tx pgx.Tx, item catalog.Item) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO goods (id, catalogue_id, name, brand_id) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`, item.ID, item.CategoryID, item.Name, item.BrandID)
	return err
}

// upsertArticle get-or-inserts the article. Article.ID is the upstream
// article id (one per color variant); good_id ties it back to the Item
// (ItemID, the upstream root id) multiple color variants share.
func (p *Persister) upsertArticle(ctx context.Context, tx pgx.Tx, article catalog.Article) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO articles (id, good_id, color_id) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`, article.ID, article.ItemID, article.ColorID)
	return err
}

func (p *Persister) insertHistory(ctx context.Context, tx pgx.Tx, articleID int, h catalog.ArticleHistory) (int, error) {
	var id int
	err := tx.QueryRow(ctx, `
		INSERT INTO article_history
			(article_id, ts, price_full, price_with_discount, sale, rating, feedbacks)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		articleID, h.Timestamp, h.PriceFull, h.PriceWithDiscount, h.Sale, h.Rating, h.Feedbacks,
	).Scan(&id)
	return id, err
}

// getOrInsertSize returns the size's surrogate id, inserting it if absent.
// The ON CONFLICT DO UPDATE is a no-op (it rewrites the same name) purely to
// make Postgres return the existing row's id from the same statement.
func (p *Persister) getOrInsertSize(ctx context.Context, tx pgx.Tx, size catalog.Size) (int, error) {
	var id int
	err := tx.QueryRow(ctx, `
		INSERT INTO sizes (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, size.Name).Scan(&id)
	return id, err
}

func (p *Persister) insertHistorySize(ctx context.Context, tx pgx.Tx, historyID, sizeID, qty int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO goods_history_size (history_id, size_id, amount) VALUES ($1, $2, $3)`,
		historyID, sizeID, qty)
	return err
}

// schema is the inline DDL applied by cmd/crawler at startup and by the
// integration test; it mirrors the table layout described in SPEC_FULL.md §3.
const schema = `
CREATE TABLE IF NOT EXISTS category (
	id BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	parent_id BIGINT,
	url TEXT NOT NULL,
	shard TEXT NOT NULL,
	query TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS brands (
	id BIGINT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS colors (
	id BIGINT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS goods (
	id BIGINT PRIMARY KEY,
	catalogue_id BIGINT NOT NULL REFERENCES category(id),
	name TEXT NOT NULL,
	brand_id BIGINT NOT NULL REFERENCES brands(id)
);
CREATE TABLE IF NOT EXISTS articles (
	id BIGINT PRIMARY KEY,
	good_id BIGINT NOT NULL REFERENCES goods(id),
	color_id BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS sizes (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS article_history (
	id BIGSERIAL PRIMARY KEY,
	article_id BIGINT NOT NULL REFERENCES articles(id),
	ts TIMESTAMPTZ NOT NULL,
	price_full INT NOT NULL,
	price_with_discount INT NOT NULL,
	sale INT NOT NULL,
	rating DOUBLE PRECISION NOT NULL,
	feedbacks INT NOT NULL
);
CREATE TABLE IF NOT EXISTS goods_history_size (
	history_id BIGINT NOT NULL REFERENCES article_history(id),
	size_id BIGINT NOT NULL REFERENCES sizes(id),
	amount INT NOT NULL,
	PRIMARY KEY (history_id, size_id)
);
`

// Schema returns the DDL used to bootstrap a fresh database.
func Schema() string { return schema }
