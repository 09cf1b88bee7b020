package models

type LocalizedText struct {
	AR string `json:"ar"`
	EN string `json:"en"`
}

// Get returns the text for lang, falling back to the other language when empty.
func (t LocalizedText) Get(lang string) string {
	if lang == "ar" {
		if t.AR != "" {
			return t.AR
		}
		return t.EN
	}
	if t.EN != "" {
		return t.EN
	}
	return t.AR
}

const AllCategoryID = "all"

type MenuCategory struct {
	ID    string        `json:"id"`
	Label LocalizedText `json:"label"`
	Icon  string        `json:"icon"`
}

type MenuItem struct {
	ID       int64         `json:"id"`
	Name     LocalizedText `json:"name"`
	Desc     LocalizedText `json:"desc"`
	Price    float64       `json:"price"`
	Category string        `json:"category"`
	Image    string        `json:"image"`
	Tag      string        `json:"tag,omitempty"`
	Extras   []MenuExtra   `json:"extras,omitempty"`
}

type MenuExtra struct {
	ID    string        `json:"id"`
	Label LocalizedText `json:"label"`
	Price float64       `json:"price"`
}

type OfferItem struct {
	ID       int64         `json:"id"`
	Title    LocalizedText `json:"title"`
	Desc     LocalizedText `json:"desc"`
	Price    float64       `json:"price"`
	OldPrice *float64      `json:"oldPrice,omitempty"`
	Badge    string        `json:"badge,omitempty"`
	Image    string        `json:"image"`
}

type Catalog struct {
	Categories []MenuCategory `json:"categories"`
	Items      []MenuItem     `json:"items"`
	Offers     []OfferItem    `json:"offers"`
}
