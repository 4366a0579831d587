package persist

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wbparser/catalog-crawler/internal/catalog"
)

// Reader serves the read queries behind internal/api and the category-table
// replacement used by the bootstrap loader. It needs the full pgxpool.Pool,
// unlike the Persister's
// narrower DBPool, since it runs ad hoc queries rather than one fixed
// transaction shape.
type Reader struct {
	db *pgxpool.Pool
}

// NewReader builds a Reader.
func NewReader(db *pgxpool.Pool) *Reader {
	return &Reader{db: db}
}

// Categories returns every stored category.
func (r *Reader) Categories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, parent_id, url, shard, query FROM category ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []catalog.Category
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID, &c.URL, &c.Shard, &c.Query); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// GoodsHistory returns every stored article history row.
func (r *Reader) GoodsHistory(ctx context.Context) ([]catalog.ArticleHistory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, article_id, ts, price_full, price_with_discount, sale, rating, feedbacks
		FROM article_history ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []catalog.ArticleHistory
	for rows.Next() {
		var h catalog.ArticleHistory
		if err := rows.Scan(&h.ID, &h.ArticleID, &h.Timestamp, &h.PriceFull, &h.PriceWithDiscount, &h.Sale, &h.Rating, &h.Feedbacks); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// ReplaceCategories truncates the category table and inserts categories in
// a single transaction.
func (r *Reader) ReplaceCategories(ctx context.Context, categories []catalog.Category) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	if _, err := tx.Exec(ctx, `TRUNCATE category CASCADE`); err != nil {
		return err
	}
	for _, c := range categories {
		if _, err := tx.Exec(ctx, `
			INSERT INTO category (id, name, parent_id, url, shard, query)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.Name, c.ParentID, c.URL, c.Shard, c.Query); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
