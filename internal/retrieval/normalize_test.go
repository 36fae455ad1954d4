// internal/retrieval/normalize_test.go
package retrieval

import (
	stdjson "encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {

	t.Run("numeric id, object price, sold status", func(t *testing.T) {
		raw := stdjson.RawMessage(`{
			"id": 42,
			"title": "Veste en jean",
			"brand_title": "Levi's",
			"size_title": "M",
			"status": "sold",
			"price": {"amount": "19.99"},
			"photo": {"url": "https://img.example.test/42.jpg"},
			"url": "https://www.example.test/items/42",
			"user": {"login": "seller42"}
		}`)

		item, ok := Normalize(raw)
		require.True(t, ok)
		assert.Equal(t, "42", item.ExternalID)
		assert.Equal(t, "Veste en jean", item.Title)
		assert.Equal(t, "Levi's", item.Brand)
		assert.Equal(t, "M", item.SizeLabel)
		assert.Equal(t, "sold", item.Condition)
		assert.Equal(t, 19.99, item.Price)
		assert.Equal(t, "https://img.example.test/42.jpg", item.ImageURL)
		assert.Equal(t, "https://www.example.test/items/42", item.ProductURL)
		assert.Equal(t, "seller42", item.SellerHandle)
		assert.True(t, item.Sold)
	})

	t.Run("string id", func(t *testing.T) {
		item, ok := Normalize(stdjson.RawMessage(`{"id": "abc-7", "title": "x"}`))
		require.True(t, ok)
		assert.Equal(t, "abc-7", item.ExternalID)
	})

	t.Run("missing id skips the record", func(t *testing.T) {
		_, ok := Normalize(stdjson.RawMessage(`{"title": "no id here"}`))
		assert.False(t, ok)
	})

	t.Run("missing price degrades to zero", func(t *testing.T) {
		item, ok := Normalize(stdjson.RawMessage(`{"id": 1}`))
		require.True(t, ok)
		assert.Zero(t, item.Price)
	})

	t.Run("comma decimal amount", func(t *testing.T) {
		item, ok := Normalize(stdjson.RawMessage(`{"id": 1, "price": {"amount": "12,50"}}`))
		require.True(t, ok)
		assert.Equal(t, 12.5, item.Price)
	})

	t.Run("bare numeric price", func(t *testing.T) {
		item, ok := Normalize(stdjson.RawMessage(`{"id": 1, "price": 8.5}`))
		require.True(t, ok)
		assert.Equal(t, 8.5, item.Price)
	})

	t.Run("bare string price", func(t *testing.T) {
		item, ok := Normalize(stdjson.RawMessage(`{"id": 1, "price": "30"}`))
		require.True(t, ok)
		assert.Equal(t, 30.0, item.Price)
	})

	t.Run("garbage and negative prices become zero", func(t *testing.T) {
		item, ok := Normalize(stdjson.RawMessage(`{"id": 1, "price": {"amount": "free!"}}`))
		require.True(t, ok)
		assert.Zero(t, item.Price)

		item, ok = Normalize(stdjson.RawMessage(`{"id": 1, "price": -4}`))
		require.True(t, ok)
		assert.Zero(t, item.Price)
	})

	t.Run("is_closed marks sold regardless of status", func(t *testing.T) {
		item, ok := Normalize(stdjson.RawMessage(`{"id": 1, "status": "very_good", "is_closed": true}`))
		require.True(t, ok)
		assert.True(t, item.Sold)
		assert.Equal(t, "very_good", item.Condition)
	})

	t.Run("size falls back from size_title to size", func(t *testing.T) {
		item, ok := Normalize(stdjson.RawMessage(`{"id": 1, "size": "38"}`))
		require.True(t, ok)
		assert.Equal(t, "38", item.SizeLabel)
	})

	t.Run("photo full_size_url fallback", func(t *testing.T) {
		item, ok := Normalize(stdjson.RawMessage(`{"id": 1, "photo": {"full_size_url": "https://img.example.test/full.jpg"}}`))
		require.True(t, ok)
		assert.Equal(t, "https://img.example.test/full.jpg", item.ImageURL)
	})

	t.Run("item wrapper is unwrapped", func(t *testing.T) {
		item, ok := Normalize(stdjson.RawMessage(`{"item": {"id": 99, "title": "wrapped"}}`))
		require.True(t, ok)
		assert.Equal(t, "99", item.ExternalID)
		assert.Equal(t, "wrapped", item.Title)
	})

	t.Run("unparseable record skips", func(t *testing.T) {
		_, ok := Normalize(stdjson.RawMessage(`[1,2,3]`))
		assert.False(t, ok)
	})

	t.Run("category passes through when present", func(t *testing.T) {
		item, ok := Normalize(stdjson.RawMessage(`{"id": 1, "category": "Vestes"}`))
		require.True(t, ok)
		assert.Equal(t, "Vestes", item.Category)
	})

	t.Run("large numeric id keeps full precision", func(t *testing.T) {
		item, ok := Normalize(stdjson.RawMessage(`{"id": 6917529027641081856}`))
		require.True(t, ok)
		assert.Equal(t, "6917529027641081856", item.ExternalID)
	})
}
