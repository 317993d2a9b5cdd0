// Package render draws a quick visual of a synthesized program: one
// rounded tile per block, children indented under their container,
// colored by toolbox category. The preview goes back to the student next
// to the emitted code so they can check the recognition at a glance.
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/yungbote/blockbridge-backend/internal/makecode"
)

const (
	canvasWidth = 640
	margin      = 24.0
	tileHeight  = 44.0
	tileGap     = 10.0
	indentStep  = 28.0
	cornerR     = 10.0
	fontSize    = 18.0
)

// categoryColors roughly follows the MakeCode toolbox palette so tiles
// look familiar next to the editor.
var categoryColors = map[string]color.NRGBA{
	"basic":     {R: 0x1E, G: 0x90, B: 0xFF, A: 0xFF},
	"input":     {R: 0xD4, G: 0x00, B: 0xD4, A: 0xFF},
	"music":     {R: 0xE6, G: 0x30, B: 0x22, A: 0xFF},
	"led":       {R: 0x5C, G: 0x2D, B: 0x91, A: 0xFF},
	"radio":     {R: 0xE3, G: 0x00, B: 0x8C, A: 0xFF},
	"loops":     {R: 0x57, G: 0xAF, B: 0x00, A: 0xFF},
	"logic":     {R: 0x00, G: 0xA4, B: 0xA6, A: 0xFF},
	"variables": {R: 0xA8, G: 0x00, B: 0x00, A: 0xFF},
	"math":      {R: 0x71, G: 0x26, B: 0x72, A: 0xFF},
	"pins":      {R: 0xA8, G: 0x56, B: 0x00, A: 0xFF},
	"control":   {R: 0x33, G: 0x33, B: 0x33, A: 0xFF},
	"events":    {R: 0x1E, G: 0x90, B: 0xFF, A: 0xFF},
}

var (
	defaultTileColor = color.NRGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xFF}
	backgroundColor  = color.NRGBA{R: 0xF7, G: 0xF9, B: 0xFC, A: 0xFF}
)

type Renderer struct {
	face font.Face
}

// New parses the bundled typeface once; the renderer is then safe to
// share across requests.
func New() (*Renderer, error) {
	parsed, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face := truetype.NewFace(parsed, &truetype.Options{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	return &Renderer{face: face}, nil
}

// tile is one row of the preview.
type tile struct {
	label string
	depth int
	cat   string
}

// PNG renders the tree top to bottom in emit order. An empty tree renders
// a single gray placeholder tile.
func (r *Renderer) PNG(tree *makecode.ProgramTree) ([]byte, error) {
	tiles := flatten(tree)
	if len(tiles) == 0 {
		tiles = []tile{{label: "NO BLOCKS DETECTED"}}
	}

	height := int(2*margin + float64(len(tiles))*tileHeight + float64(len(tiles)-1)*tileGap)
	dc := gg.NewContext(canvasWidth, height)

	dc.SetColor(backgroundColor)
	dc.Clear()
	dc.SetFontFace(r.face)

	y := margin
	for _, tl := range tiles {
		x := margin + float64(tl.depth)*indentStep
		w := canvasWidth - margin - x

		dc.SetColor(tileColor(tl.cat))
		dc.DrawRoundedRectangle(x, y, w, tileHeight, cornerR)
		dc.Fill()

		dc.SetColor(color.White)
		_, th := dc.MeasureString(tl.label)
		dc.DrawString(tl.label, x+16, y+tileHeight/2+th/2)

		y += tileHeight + tileGap
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func flatten(tree *makecode.ProgramTree) []tile {
	if tree.Empty() {
		return nil
	}
	var out []tile
	var walk func(n *makecode.Node, depth int)
	walk = func(n *makecode.Node, depth int) {
		out = append(out, tile{
			label: strings.ToUpper(makecode.NormalizeKey(n.Block.Def.ID)),
			depth: depth,
			cat:   n.Block.Def.Category,
		})
		for _, child := range n.Children {
			walk(child, depth+1)
		}
	}
	for _, root := range tree.Roots {
		walk(root, 0)
	}
	return out
}

func tileColor(category string) color.NRGBA {
	if c, ok := categoryColors[category]; ok {
		return c
	}
	return defaultTileColor
}
