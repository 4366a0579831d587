package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryCrawlable(t *testing.T) {
	assert.False(t, Category{Shard: ""}.Crawlable())
	assert.False(t, Category{Shard: "/catalog/blackhole"}.Crawlable())
	assert.False(t, Category{Shard: "/catalog/preset123"}.Crawlable())
	assert.True(t, Category{Shard: "/catalog/electronics"}.Crawlable())
}
