package exporter

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"math"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/euforicio/techtips/internal/markdown"
	d2renderer "github.com/euforicio/techtips/internal/renderer/d2"
)

const maxDiagramSide = 4096

// diagramEncoder replaces ```d2 fences with markdown images carrying PNG data
// URIs, so the PDF renderer needs no knowledge of diagrams. Fences that fail
// to compile stay in the document as code.
type diagramEncoder struct {
	d2     *d2renderer.Renderer
	logger *slog.Logger
}

func (e *diagramEncoder) encode(ctx context.Context, raw []byte) ([]byte, error) {
	if e.d2 == nil || !bytes.Contains(raw, []byte("```")) {
		return raw, nil
	}

	var (
		out     bytes.Buffer
		fence   strings.Builder
		diagram strings.Builder
		inD2    bool
		inCode  bool
	)

	for _, line := range strings.SplitAfter(string(raw), "\n") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bare := strings.TrimRight(line, "\r\n")
		lang, isFence := markdown.FenceLanguage(bare)

		switch {
		case inD2 && isFence:
			fence.WriteString(line)
			e.flushD2(ctx, &out, diagram.String(), fence.String())
			inD2 = false
		case inD2:
			fence.WriteString(line)
			diagram.WriteString(line)
		case inCode:
			out.WriteString(line)
			inCode = !isFence
		case isFence && strings.EqualFold(lang, "d2"):
			inD2 = true
			fence.Reset()
			diagram.Reset()
			fence.WriteString(line)
		default:
			out.WriteString(line)
			inCode = isFence
		}
	}

	if inD2 {
		out.WriteString(fence.String())
	}
	return out.Bytes(), nil
}

// flushD2 writes the diagram as an image, or the original fence text when
// the diagram cannot be produced.
func (e *diagramEncoder) flushD2(ctx context.Context, out *bytes.Buffer, source, original string) {
	uri, err := e.renderD2(ctx, source)
	if err != nil {
		e.logger.Warn("keeping d2 fence as code in pdf", slog.Any("err", err))
		out.WriteString(original)
		return
	}
	fmt.Fprintf(out, "![D2 diagram](%s)\n", uri)
}

func (e *diagramEncoder) renderD2(ctx context.Context, source string) (string, error) {
	res, err := e.d2.Render(ctx, source)
	if err != nil {
		return "", fmt.Errorf("render d2: %w", err)
	}
	pngData, err := svgToPNG([]byte(res.SVG))
	if err != nil {
		return "", fmt.Errorf("rasterize d2 svg: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData), nil
}

// svgToPNG rasterizes an SVG onto a white canvas.
func svgToPNG(svg []byte) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svg), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}

	width := int(math.Ceil(icon.ViewBox.W))
	height := int(math.Ceil(icon.ViewBox.H))
	if width <= 0 || height <= 0 {
		return nil, errors.New("svg has an empty view box")
	}
	if width > maxDiagramSide || height > maxDiagramSide {
		scale := float64(maxDiagramSide) / math.Max(float64(width), float64(height))
		width = int(float64(width) * scale)
		height = int(float64(height) * scale)
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(width, height, canvas, canvas.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
