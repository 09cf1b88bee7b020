package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jogardn/restaurant-storefront/internal/apiclient"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

func TestNormalizeProduct(t *testing.T) {
	n := normalizer{mediaBase: "http://api.local"}

	item, ok := n.product(apiclient.Record{
		"pk":             "42",
		"title":          "Falafel",
		"description_ar": "طعمية",
		"unit_price":     "12.5",
		"category_slug":  "sandwiches",
		"photo":          "https://img.example/f.png",
		"extras": []interface{}{
			map[string]interface{}{"id": 1, "name": "Cheese", "price": 5},
			map[string]interface{}{"name": "no id"},
			"junk",
		},
	})
	assert.True(t, ok)
	assert.Equal(t, int64(42), item.ID)
	assert.Equal(t, models.LocalizedText{AR: "Falafel", EN: "Falafel"}, item.Name)
	assert.Equal(t, models.LocalizedText{AR: "طعمية", EN: "طعمية"}, item.Desc)
	assert.Equal(t, 12.5, item.Price)
	assert.Equal(t, "sandwiches", item.Category)
	assert.Equal(t, "https://img.example/f.png", item.Image)
	assert.Equal(t, "", item.Tag)
	assert.Equal(t, []models.MenuExtra{{ID: "1", Label: models.LocalizedText{AR: "Cheese", EN: "Cheese"}, Price: 5}}, item.Extras)
}

func TestNormalizeProduct_NestedTranslations(t *testing.T) {
	item, ok := normalizer{}.product(apiclient.Record{
		"id":   7,
		"name": map[string]interface{}{"ar": "شاي", "en": "Tea"},
	})
	assert.True(t, ok)
	assert.Equal(t, models.LocalizedText{AR: "شاي", EN: "Tea"}, item.Name)
}

func TestNormalizeProduct_Rejects(t *testing.T) {
	n := normalizer{}
	for name, rec := range map[string]apiclient.Record{
		"no id":       {"name": "x"},
		"bad id":      {"id": "abc"},
		"unavailable": {"id": 1, "is_available": false},
		"inactive":    {"id": 1, "is_active": "false"},
	} {
		_, ok := n.product(rec)
		assert.False(t, ok, name)
	}
}

func TestNormalizeOffer_OldPriceOnlyWhenHigher(t *testing.T) {
	offer, ok := normalizer{}.offer(apiclient.Record{"id": 1, "price": 50, "original_price": 40})
	assert.True(t, ok)
	assert.Nil(t, offer.OldPrice)

	offer, ok = normalizer{}.offer(apiclient.Record{"id": 2, "offer_price": "50", "compare_at_price": 70.0})
	assert.True(t, ok)
	if assert.NotNil(t, offer.OldPrice) {
		assert.Equal(t, 70.0, *offer.OldPrice)
	}
	assert.Equal(t, 50.0, offer.Price)
}

func TestTag(t *testing.T) {
	assert.Equal(t, "new", tag(apiclient.Record{"tag": "NEW"}, productFields["tag"]))
	assert.Equal(t, "hot", tag(apiclient.Record{"badge": "bestseller"}, productFields["tag"]))
	assert.Equal(t, "hot", tag(apiclient.Record{"is_featured": true}, productFields["tag"]))
	assert.Equal(t, "", tag(apiclient.Record{"tag": "vegan"}, productFields["tag"]))
}

func TestMedia(t *testing.T) {
	n := normalizer{mediaBase: "http://api.local"}
	assert.Equal(t, "http://api.local/media/a.jpg", n.media("/media/a.jpg"))
	assert.Equal(t, "//cdn/a.jpg", n.media("//cdn/a.jpg"))
	assert.Equal(t, "", n.media(""))
}
