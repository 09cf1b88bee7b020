package qrcode

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 256

var ErrInvalidTableNumber = errors.New("invalid table number")

var tableNumberPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,16}$`)

// TableGenerator renders the QR code printed on a table. Scanning it opens
// the public menu with the table pre-selected.
type TableGenerator struct {
	MenuURL string
	Size    int
}

func NewTableGenerator(menuURL string) TableGenerator {
	return TableGenerator{MenuURL: menuURL, Size: DefaultSize}
}

// ValidTableNumber reports whether table can be printed into a menu link.
func ValidTableNumber(table string) bool {
	return tableNumberPattern.MatchString(table)
}

// Link is the URL encoded into the code for table.
func (g TableGenerator) Link(table string) (string, error) {
	table = strings.TrimSpace(table)
	if !ValidTableNumber(table) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTableNumber, table)
	}
	u, err := url.Parse(g.MenuURL)
	if err != nil {
		return "", fmt.Errorf("invalid menu url: %w", err)
	}
	q := u.Query()
	q.Set("table", table)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Generate returns a PNG.
func (g TableGenerator) Generate(table string) ([]byte, error) {
	link, err := g.Link(table)
	if err != nil {
		return nil, err
	}
	size := g.Size
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(link, qrcode.Medium, size)
}
