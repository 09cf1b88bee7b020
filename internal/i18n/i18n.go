// Package i18n resolves the bilingual text fields of the menu and formats
// prices for the active language.
package i18n

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jogardn/restaurant-storefront/pkg/models"
)

const (
	English = "en"
	Arabic  = "ar"

	DefaultLanguage = Arabic
)

var (
	supported = []language.Tag{language.Arabic, language.English}
	matcher   = language.NewMatcher(supported)
)

// Normalize maps any language tag or Accept-Language header onto "ar" or "en".
// Empty input returns DefaultLanguage.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLanguage
	}
	_, idx := language.MatchStrings(matcher, raw)
	if supported[idx] == language.English {
		return English
	}
	return Arabic
}

// IsRTL reports whether the language is written right to left
func IsRTL(lang string) bool {
	return lang == Arabic
}

func Text(t models.LocalizedText, lang string) string {
	return t.Get(lang)
}

type Formatter struct {
	currency map[string]string
	printers map[string]*message.Printer
}

func NewFormatter(currencyEN, currencyAR string) *Formatter {
	return &Formatter{
		currency: map[string]string{English: currencyEN, Arabic: currencyAR},
		printers: map[string]*message.Printer{
			English: message.NewPrinter(language.English),
			Arabic:  message.NewPrinter(language.Arabic),
		},
	}
}

// Price formats amount with two decimals in the digits of lang, followed by
// the currency label for that language.
func (f *Formatter) Price(lang string, amount float64) string {
	return f.Decimal(lang, decimal.NewFromFloat(amount))
}

func (f *Formatter) Decimal(lang string, amount decimal.Decimal) string {
	lang = Normalize(lang)
	value, _ := amount.Round(2).Float64()
	formatted := f.printers[lang].Sprintf("%.2f", value)
	if cur := f.currency[lang]; cur != "" {
		return formatted + " " + cur
	}
	return formatted
}
