package catalog

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/jogardn/restaurant-storefront/internal/apiclient"
	"github.com/jogardn/restaurant-storefront/pkg/models"
)

// fields lists, for each logical attribute, the backend keys that may carry
// it in priority order. The first non-empty value wins.
type fields map[string][]string

var categoryFields = fields{
	"id":       {"id", "slug", "pk"},
	"label_ar": {"name_ar", "title_ar", "label_ar"},
	"label_en": {"name_en", "name", "title_en", "title", "label"},
	"icon":     {"icon", "emoji", "image", "image_url"},
}

var productFields = fields{
	"id":       {"id", "pk", "product_id"},
	"name_ar":  {"name_ar", "title_ar"},
	"name_en":  {"name_en", "name", "title_en", "title"},
	"desc_ar":  {"description_ar", "desc_ar"},
	"desc_en":  {"description_en", "description", "desc_en", "desc"},
	"price":    {"price", "unit_price", "base_price"},
	"category": {"category", "category_id", "category_slug"},
	"image":    {"image", "image_url", "photo", "thumbnail"},
	"tag":      {"tag", "badge", "label"},
	"extras":   {"extras", "addons", "options"},
}

var extraFields = fields{
	"id":       {"id", "slug", "code"},
	"label_ar": {"name_ar", "title_ar"},
	"label_en": {"name_en", "name", "title_en", "title"},
	"price":    {"price", "extra_price"},
}

var offerFields = fields{
	"id":        {"id", "pk"},
	"title_ar":  {"title_ar", "name_ar"},
	"title_en":  {"title_en", "title", "name_en", "name"},
	"desc_ar":   {"description_ar", "desc_ar"},
	"desc_en":   {"description_en", "description", "desc_en", "desc"},
	"price":     {"price", "offer_price", "new_price", "discounted_price"},
	"old_price": {"old_price", "original_price", "price_before", "compare_at_price"},
	"badge":     {"badge", "label", "discount_label", "tag"},
	"image":     {"image", "image_url", "photo", "thumbnail"},
}

// hiddenFlags mark records the menu must not show when explicitly false.
var hiddenFlags = []string{"is_active", "is_available", "available"}

// tagFlags map boolean markers onto the two tags the menu renders.
var tagFlags = []struct {
	key string
	tag string
}{
	{"is_new", "new"},
	{"is_hot", "hot"},
	{"is_popular", "hot"},
	{"is_featured", "hot"},
}

type normalizer struct {
	mediaBase string
}

func (n normalizer) category(rec apiclient.Record) (models.MenuCategory, bool) {
	id := refID(first(rec, categoryFields["id"]))
	if id == "" {
		return models.MenuCategory{}, false
	}
	label := localized(rec, categoryFields["label_ar"], categoryFields["label_en"])
	if label.AR == "" && label.EN == "" {
		label = models.LocalizedText{AR: id, EN: id}
	}
	return models.MenuCategory{
		ID:    id,
		Label: label,
		Icon:  firstString(rec, categoryFields["icon"]),
	}, true
}

func (n normalizer) product(rec apiclient.Record) (models.MenuItem, bool) {
	if hidden(rec) {
		return models.MenuItem{}, false
	}
	id, err := cast.ToInt64E(first(rec, productFields["id"]))
	if err != nil || id == 0 {
		return models.MenuItem{}, false
	}
	price, _ := firstNumber(rec, productFields["price"])

	item := models.MenuItem{
		ID:       id,
		Name:     localized(rec, productFields["name_ar"], productFields["name_en"]),
		Desc:     localized(rec, productFields["desc_ar"], productFields["desc_en"]),
		Price:    price,
		Category: refID(first(rec, productFields["category"])),
		Image:    n.media(firstString(rec, productFields["image"])),
		Tag:      tag(rec, productFields["tag"]),
	}

	if raw, ok := first(rec, productFields["extras"]).([]interface{}); ok {
		for _, entry := range raw {
			extra, ok := entry.(map[string]interface{})
			if !ok {
				continue
			}
			if e, ok := n.extra(extra); ok {
				item.Extras = append(item.Extras, e)
			}
		}
	}
	return item, true
}

func (n normalizer) extra(rec apiclient.Record) (models.MenuExtra, bool) {
	id := refID(first(rec, extraFields["id"]))
	if id == "" {
		return models.MenuExtra{}, false
	}
	price, _ := firstNumber(rec, extraFields["price"])
	return models.MenuExtra{
		ID:    id,
		Label: localized(rec, extraFields["label_ar"], extraFields["label_en"]),
		Price: price,
	}, true
}

func (n normalizer) offer(rec apiclient.Record) (models.OfferItem, bool) {
	if hidden(rec) {
		return models.OfferItem{}, false
	}
	id, err := cast.ToInt64E(first(rec, offerFields["id"]))
	if err != nil || id == 0 {
		return models.OfferItem{}, false
	}
	price, _ := firstNumber(rec, offerFields["price"])

	offer := models.OfferItem{
		ID:    id,
		Title: localized(rec, offerFields["title_ar"], offerFields["title_en"]),
		Desc:  localized(rec, offerFields["desc_ar"], offerFields["desc_en"]),
		Price: price,
		Badge: firstString(rec, offerFields["badge"]),
		Image: n.media(firstString(rec, offerFields["image"])),
	}
	if old, ok := firstNumber(rec, offerFields["old_price"]); ok && old > price {
		offer.OldPrice = &old
	}
	return offer, true
}

// media turns backend-relative upload paths into absolute URLs.
func (n normalizer) media(path string) string {
	if path == "" || n.mediaBase == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return path
	}
	return n.mediaBase + path
}

func first(rec apiclient.Record, keys []string) interface{} {
	for _, key := range keys {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return nil
}

func firstString(rec apiclient.Record, keys []string) string {
	for _, key := range keys {
		switch v := rec[key].(type) {
		case nil, map[string]interface{}, []interface{}:
			continue
		default:
			if s := strings.TrimSpace(cast.ToString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstNumber(rec apiclient.Record, keys []string) (float64, bool) {
	for _, key := range keys {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		if f, err := cast.ToFloat64E(v); err == nil {
			return f, true
		}
	}
	return 0, false
}

// localized reads a translated attribute either from a nested {"ar","en"}
// object or from per-language keys. A missing language borrows the other.
func localized(rec apiclient.Record, arKeys, enKeys []string) models.LocalizedText {
	var text models.LocalizedText
	for _, keys := range [][]string{enKeys, arKeys} {
		for _, key := range keys {
			nested, ok := rec[key].(map[string]interface{})
			if !ok {
				continue
			}
			text.AR = strings.TrimSpace(cast.ToString(nested["ar"]))
			text.EN = strings.TrimSpace(cast.ToString(nested["en"]))
			if text.AR != "" || text.EN != "" {
				return fill(text)
			}
		}
	}
	text.AR = firstString(rec, arKeys)
	text.EN = firstString(rec, enKeys)
	return fill(text)
}

func fill(text models.LocalizedText) models.LocalizedText {
	if text.AR == "" {
		text.AR = text.EN
	}
	if text.EN == "" {
		text.EN = text.AR
	}
	return text
}

// refID resolves a reference that may be a scalar id or a nested object.
func refID(v interface{}) string {
	if nested, ok := v.(map[string]interface{}); ok {
		v = first(nested, categoryFields["id"])
	}
	if v == nil {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

func hidden(rec apiclient.Record) bool {
	for _, key := range hiddenFlags {
		v, ok := rec[key]
		if !ok || v == nil {
			continue
		}
		if b, err := cast.ToBoolE(v); err == nil && !b {
			return true
		}
	}
	return false
}

func tag(rec apiclient.Record, keys []string) string {
	switch strings.ToLower(firstString(rec, keys)) {
	case "new", "جديد":
		return "new"
	case "hot", "popular", "bestseller", "best_seller", "spicy":
		return "hot"
	}
	for _, flag := range tagFlags {
		if b, err := cast.ToBoolE(rec[flag.key]); err == nil && b {
			return flag.tag
		}
	}
	return ""
}
