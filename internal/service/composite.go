package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/nitro/annoverlay/internal/overlay"
)

// composite burns the overlay into the backing image. The result is cached by the image, the page, the size and the
// annotation payload, any change at the payload results in a new render.
func (w *Worker) composite(ctx context.Context, req OverlayRequest, output io.Writer) (_ RenderInfo, err error) {
	span, ctx := startSpan(ctx, "Worker.composite")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	logger, err := w.TraceExtractor(ctx, w.Logger)
	if err != nil {
		return RenderInfo{}, fmt.Errorf("fail to extract the tracing ids: %w", err)
	}

	raw, err := w.Annotations.FetchAnnotation(ctx, req.AnnotationKey)
	if err != nil {
		return RenderInfo{}, fmt.Errorf("fail to fetch the annotations: %w", err)
	}

	key := compositeKey(req, raw)
	if cached, err := w.cachedComposite(ctx, key, output); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Fail to read the cached render")
	} else if cached {
		span.SetTag("cached", true)
		return RenderInfo{ID: key, ContentType: contentType(FormatPNG), Cached: true}, nil
	}

	var gate overlay.Gate
	img := newRemoteImage()
	gate.Attach(img)
	defer gate.Close()

	err = img.load(ctx, func(ctx context.Context) (image.Image, error) {
		return w.loadImage(ctx, req.Path, req.Page)
	})
	if err != nil {
		return RenderInfo{}, err
	}

	payload, warning := w.reconcile(raw)
	target := resolveTarget(gate.Size(), req.Width, req.Height)
	result := w.Renderer.RenderGated(payload, &gate, target)
	canvas := scaleImage(img.Image(), result.Width, result.Height)
	overlay.Composite(canvas, result)

	var buf bytes.Buffer
	if err := encodePNG(&buf, canvas); err != nil {
		return RenderInfo{}, err
	}
	if w.Storage != nil {
		if err := w.Storage.Put(ctx, key, bytes.NewReader(buf.Bytes())); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("Fail to cache the render")
		}
	}
	if _, err := io.Copy(output, &buf); err != nil {
		return RenderInfo{}, fmt.Errorf("fail write the result to the output: %w", err)
	}

	info := w.info(result, FormatPNG, warning)
	info.ID = key
	return info, nil
}

func (w *Worker) cachedComposite(ctx context.Context, key string, output io.Writer) (bool, error) {
	if w.Storage == nil {
		return false, nil
	}
	reader, err := w.Storage.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("fail to get the object from the storage: %w", err)
	}
	if reader == nil {
		return false, nil
	}
	defer reader.Close()

	if _, err := io.Copy(output, reader); err != nil {
		return false, fmt.Errorf("fail write the cached result to the output: %w", err)
	}
	return true, nil
}

// scaleImage copies the image into a RGBA canvas of the given size, the canvas is then safe to be drawn on.
func scaleImage(src image.Image, width, height float64) *image.RGBA {
	bounds := src.Bounds()
	size := image.Rect(0, 0, int(width+0.5), int(height+0.5))
	if size.Empty() {
		size = image.Rect(0, 0, bounds.Dx(), bounds.Dy())
	}

	canvas := image.NewRGBA(size)
	if size.Dx() == bounds.Dx() && size.Dy() == bounds.Dy() {
		draw.Draw(canvas, size, src, bounds.Min, draw.Src)
		return canvas
	}
	draw.CatmullRom.Scale(canvas, size, src, bounds, draw.Src, nil)
	return canvas
}

func encodePNG(output io.Writer, img image.Image) error {
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(output, img); err != nil {
		return fmt.Errorf("fail to encode the PNG: %w", err)
	}
	return nil
}

func compositeKey(req OverlayRequest, raw []byte) string {
	hash := sha256.New()
	fmt.Fprintf(hash, "%s\x00%d\x00%d\x00%d\x00", req.Path, req.Page, req.Width, req.Height)
	hash.Write(raw)
	return hex.EncodeToString(hash.Sum(nil)) + ".png"
}
