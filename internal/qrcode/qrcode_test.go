package qrcode

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLink(t *testing.T) {
	g := NewTableGenerator("https://menu.example/order?lang=ar")

	link, err := g.Link(" 12 ")
	require.NoError(t, err)
	assert.Equal(t, "https://menu.example/order?lang=ar&table=12", link)

	for _, bad := range []string{"", "1 2", "../x", "12345678901234567"} {
		_, err := g.Link(bad)
		assert.ErrorIs(t, err, ErrInvalidTableNumber, bad)
	}
}

func TestGenerate_PNG(t *testing.T) {
	g := TableGenerator{MenuURL: "https://menu.example/", Size: 128}

	data, err := g.Generate("A3")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}
