package cards

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbparser/catalog-crawler/internal/catalog"
	"github.com/wbparser/catalog-crawler/internal/config"
	"github.com/wbparser/catalog-crawler/pkg/logger"
)

type stubFetcher struct {
	body []byte
	err  error
}

func (s *stubFetcher) GetJSON(_ context.Context, _ string, target interface{}) error {
	if s.err != nil {
		return s.err
	}
	return json.Unmarshal(s.body, target)
}

func TestFetchCardsReturnsProducts(t *testing.T) {
	body := []byte(`{"data":{"products":[{"id":1,"root":100,"name":"Shirt","brandId":5,"colors":[{"id":10,"name":"black"}],"priceU":1000,"salePriceU":800,"sale":20,"rating":4.5,"feedbacks":12,"sizes":[{"name":"M","stocks":[{"qty":3}]}]}]}}`)
	c := New(&stubFetcher{body: body}, config.Defaults().Endpoints, logger.NewNoop())

	batch, got, err := c.FetchCards(context.Background(), IDBatch{CategoryID: 1, IDs: []int{1}})
	require.NoError(t, err)
	require.True(t, got)
	require.Len(t, batch.Products, 1)
	assert.Equal(t, "Shirt", batch.Products[0].Name)
	assert.Equal(t, 100, batch.Products[0].Root)
	assert.Equal(t, 1, batch.CategoryID)
}

func TestFetchCardsDropsEmptyPage(t *testing.T) {
	body := []byte(`{"data":{"products":[]}}`)
	c := New(&stubFetcher{body: body}, config.Defaults().Endpoints, logger.NewNoop())

	_, got, err := c.FetchCards(context.Background(), IDBatch{CategoryID: 1, IDs: []int{1}})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestFetchCardsDropsMalformedPage(t *testing.T) {
	body := []byte(`not json`)
	c := New(&stubFetcher{body: body}, config.Defaults().Endpoints, logger.NewNoop())

	_, got, err := c.FetchCards(context.Background(), IDBatch{CategoryID: 1, IDs: []int{1}})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestFetchCardsPropagatesFatalUpstreamError(t *testing.T) {
	c := New(&stubFetcher{err: &catalog.UpstreamUnavailable{URL: "x", Attempts: 10}}, config.Defaults().Endpoints, logger.NewNoop())

	_, got, err := c.FetchCards(context.Background(), IDBatch{CategoryID: 1, IDs: []int{1}})
	require.Error(t, err)
	assert.False(t, got)
}

func TestRunStopsOnInputClose(t *testing.T) {
	c := New(&stubFetcher{body: []byte(`{"data":{"products":[]}}`)}, config.Defaults().Endpoints, logger.NewNoop())
	in := make(chan IDBatch)
	out := make(chan Batch, 1)
	close(in)

	err := c.Run(context.Background(), in, out)
	require.NoError(t, err)
}
