// Package preview rasterizes board snapshots to PNG for quick visual
// inspection from the CLI. It is a developer aid, not the renderer: output
// approximates card fills, labels, and connector arrows well enough to judge
// a layout without opening the whiteboard UI.
package preview

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/errors"
)

// Padding around the drawn bounds, in board units.
const padding = 40.0

// arrowSize is the filled arrowhead length in pixels at scale 1.
const arrowSize = 9.0

// Options controls rasterization.
type Options struct {
	// Scale maps board units to pixels. Zero or negative defaults to 1.
	Scale float64
}

// Render rasterizes a snapshot into an in-memory image.
func Render(snap *board.Snapshot, opts Options) (image.Image, error) {
	if snap == nil {
		return nil, errors.New(errors.ErrCodeInvalidSnapshot, "nil snapshot")
	}

	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}

	b := board.ComputeBounds(snap.Elements)
	w := int(math.Ceil((b.Width + 2*padding) * scale))
	h := int(math.Ceil((b.Height + 2*padding) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dc := gg.NewContext(w, h)
	dc.SetHexColor(background(snap))
	dc.Clear()

	// Board coordinates -> pixels.
	dc.Scale(scale, scale)
	dc.Translate(padding-b.MinX, padding-b.MinY)

	ttf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse font")
	}

	// Arrows first so cards draw over their bound endpoints.
	for i := range snap.Elements {
		e := &snap.Elements[i]
		if e.IsDeleted || !e.IsArrow() {
			continue
		}
		drawArrow(dc, e)
	}
	for i := range snap.Elements {
		e := &snap.Elements[i]
		if e.IsDeleted {
			continue
		}
		switch e.Type {
		case board.TypeRectangle:
			drawRectangle(dc, e)
		case board.TypeImage:
			drawImage(dc, e, snap.Files)
		case board.TypeText:
			drawText(dc, ttf, e)
		}
	}

	return dc.Image(), nil
}

// WritePNG rasterizes a snapshot and encodes it as PNG to w.
func WritePNG(w io.Writer, snap *board.Snapshot, opts Options) error {
	img, err := Render(snap, opts)
	if err != nil {
		return err
	}
	return gg.NewContextForImage(img).EncodePNG(w)
}

// SavePNG rasterizes a snapshot to a PNG file.
func SavePNG(path string, snap *board.Snapshot, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", path)
	}
	defer f.Close()
	return WritePNG(f, snap, opts)
}

func background(snap *board.Snapshot) string {
	if snap.AppState.ViewBackgroundColor != "" {
		return snap.AppState.ViewBackgroundColor
	}
	return board.BackgroundForTheme(snap.AppState.Theme)
}

func drawRectangle(dc *gg.Context, e *board.Element) {
	if e.BackgroundColor != "" && e.BackgroundColor != "transparent" {
		dc.SetHexColor(e.BackgroundColor)
		dc.DrawRectangle(e.X, e.Y, e.Width, e.Height)
		dc.Fill()
	}

	stroke := e.StrokeColor
	if stroke == "" {
		stroke = board.DefaultStrokeColor
	}
	dc.SetHexColor(stroke)
	dc.SetLineWidth(math.Max(e.StrokeWidth, 1))
	dc.DrawRectangle(e.X, e.Y, e.Width, e.Height)
	dc.Stroke()
}

// drawImage decodes the element's embedded file and draws it into the
// element box. A missing or undecodable file degrades to a gray placeholder.
func drawImage(dc *gg.Context, e *board.Element, files map[string]board.EmbeddedFile) {
	img := decodeEmbedded(files, e.FileID)
	if img == nil {
		dc.SetHexColor("#d0d0d0")
		dc.DrawRectangle(e.X, e.Y, e.Width, e.Height)
		dc.Fill()
		return
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return
	}
	dc.Push()
	dc.Translate(e.X, e.Y)
	dc.Scale(e.Width/float64(bounds.Dx()), e.Height/float64(bounds.Dy()))
	dc.DrawImage(img, 0, 0)
	dc.Pop()
}

func decodeEmbedded(files map[string]board.EmbeddedFile, fileID string) image.Image {
	f, ok := files[fileID]
	if !ok {
		return nil
	}
	_, b64, found := strings.Cut(f.DataURL, ";base64,")
	if !found {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	return img
}

func drawText(dc *gg.Context, ttf *truetype.Font, e *board.Element) {
	size := e.FontSize
	if size <= 0 {
		size = board.DefaultFontSize
	}
	face := truetype.NewFace(ttf, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	dc.SetFontFace(face)

	stroke := e.StrokeColor
	if stroke == "" {
		stroke = board.DefaultStrokeColor
	}
	dc.SetHexColor(stroke)

	lineHeight := size * 1.25
	for i, line := range strings.Split(e.Text, "\n") {
		dc.DrawString(line, e.X, e.Y+size+float64(i)*lineHeight)
	}
}

// drawArrow strokes the arrow's relative point chain and fills an arrowhead
// at the final segment.
func drawArrow(dc *gg.Context, e *board.Element) {
	if len(e.Points) < 2 {
		return
	}

	stroke := e.StrokeColor
	if stroke == "" {
		stroke = board.DefaultStrokeColor
	}
	dc.SetHexColor(stroke)
	dc.SetLineWidth(math.Max(e.StrokeWidth, 1))

	for i := 0; i < len(e.Points)-1; i++ {
		x1 := e.X + e.Points[i][0]
		y1 := e.Y + e.Points[i][1]
		x2 := e.X + e.Points[i+1][0]
		y2 := e.Y + e.Points[i+1][1]
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
	}

	last := e.Points[len(e.Points)-1]
	prev := e.Points[len(e.Points)-2]
	drawArrowhead(dc,
		e.X+prev[0], e.Y+prev[1],
		e.X+last[0], e.Y+last[1])
}

func drawArrowhead(dc *gg.Context, fromX, fromY, toX, toY float64) {
	dx := toX - fromX
	dy := toY - fromY
	length := math.Hypot(dx, dy)
	if length < 0.1 {
		return
	}
	dx /= length
	dy /= length

	const spread = 0.45 // radians

	dc.MoveTo(toX, toY)
	dc.LineTo(toX-arrowSize*dx+arrowSize*dy*spread, toY-arrowSize*dy-arrowSize*dx*spread)
	dc.LineTo(toX-arrowSize*dx-arrowSize*dy*spread, toY-arrowSize*dy+arrowSize*dx*spread)
	dc.ClosePath()
	dc.Fill()
}
