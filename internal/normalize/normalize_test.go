package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbparser/catalog-crawler/internal/cards"
	"github.com/wbparser/catalog-crawler/internal/catalog"
)

func TestNormalizeSingleColor(t *testing.T) {
	p := cards.Product{
		ID:        42,
		Root:      99,
		Name:      "Jacket",
		Brand:     "Acme",
		BrandID:   7,
		Colors:    []cards.ColorRef{{ID: 1, Name: "black"}},
		PriceU:    5000,
		SalePrice: 4000,
		Sale:      20,
		Rating:    4.8,
		Feedbacks: 100,
		Sizes: []cards.ProductSize{
			{Name: "M", Stocks: []cards.Stock{{Qty: 2}, {Qty: 3}}},
		},
	}

	now := time.Unix(1700000000, 0)
	card, err := Normalize(9, p, now)
	require.NoError(t, err)
	assert.Equal(t, 1, card.Article.ColorID)
	assert.Equal(t, 42, card.Article.ID)
	assert.Equal(t, 99, card.Article.ItemID)
	assert.Equal(t, 99, card.Item.ID)
	assert.Equal(t, 7, card.Brand.ID)
	assert.Equal(t, 9, card.Item.CategoryID)
	assert.Equal(t, 5, card.SizeStock[catalog.Size{Name: "M"}])
	assert.Equal(t, now, card.History.Timestamp)
}

func TestNormalizeMultiColorUsesSentinel(t *testing.T) {
	p := cards.Product{
		ID:      1,
		Root:    50,
		BrandID: 1,
		Colors:  []cards.ColorRef{{ID: 1, Name: "black"}, {ID: 2, Name: "white"}},
	}
	card, err := Normalize(1, p, time.Now())
	require.NoError(t, err)
	assert.Equal(t, catalog.MultiColorID, card.Article.ColorID)
	assert.Len(t, card.Colors, 2)
}

func TestNormalizeRejectsMissingColors(t *testing.T) {
	p := cards.Product{ID: 1, Root: 50, BrandID: 1}
	_, err := Normalize(1, p, time.Now())
	require.Error(t, err)

	var valErr *catalog.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "colors", valErr.Field)
}

func TestNormalizeRejectsMissingBrand(t *testing.T) {
	p := cards.Product{ID: 1, Root: 50, Colors: []cards.ColorRef{{ID: 1}}}
	_, err := Normalize(1, p, time.Now())
	require.Error(t, err)
}

func TestNormalizeRejectsMissingRoot(t *testing.T) {
	p := cards.Product{ID: 1, BrandID: 1, Colors: []cards.ColorRef{{ID: 1}}}
	_, err := Normalize(1, p, time.Now())
	require.Error(t, err)

	var valErr *catalog.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "root", valErr.Field)
}
