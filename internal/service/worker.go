package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Registers the GIF decoder.
	_ "image/jpeg" // Registers the JPEG decoder.
	_ "image/png"  // Registers the PNG decoder.
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Nitro/urlsign"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"github.com/nitro/lazypdf/v2"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"  // Registers the BMP decoder.
	_ "golang.org/x/image/tiff" // Registers the TIFF decoder.
	_ "golang.org/x/image/webp" // Registers the WebP decoder.
	"golang.org/x/sync/errgroup"
	awstrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/aws/aws-sdk-go/aws"
	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/nitro/annoverlay/internal/overlay"
)

// Output formats.
const (
	FormatSVG  = "svg"
	FormatJSON = "json"
	FormatPNG  = "png"
)

const (
	maxDimension      = 8192
	maxPage           = math.MaxUint16 + 1 // lazypdf addresses the pages with an uint16 starting at zero.
	signingBucketSize = 8 * time.Hour
	pdfScale          = 1.5
)

type workerAnnotations interface {
	FetchAnnotation(ctx context.Context, key string) ([]byte, error)
	SaveAnnotation(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

type workerStorage interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, payload io.Reader) error
}

// OverlayRequest describes the overlay of a stored annotation payload on top of a backing image.
type OverlayRequest struct {
	// URL is the signed URL used to verify the request.
	URL string

	// Path of the backing image. It's either '<bucket>/<key>' or 'dropbox/<base64 url>'.
	Path string

	AnnotationKey string

	// Page is 1 based and only used when the backing image is a PDF.
	Page   int
	Width  int
	Height int
	Format string
}

// RenderInfo has the details of a render pass.
type RenderInfo struct {
	ID          string
	ContentType string
	Width       float64
	Height      float64
	Primitives  int
	Warning     string
	Cached      bool
}

// Metadata of a backing image.
type Metadata struct {
	Width     int `json:"width"`
	Height    int `json:"height"`
	PageCount int `json:"pageCount"`
}

// Worker used to fetch backing images and annotation payloads and render overlays out of them.
type Worker struct {
	HTTPClient          *http.Client
	URLSigningSecret    string
	Logger              zerolog.Logger
	TraceExtractor      TraceExtractor
	StorageBucketRegion map[string]string
	Annotations         workerAnnotations
	Renderer            overlay.Renderer
	AnnotationTTL       time.Duration

	// Storage caches the composited renders, it's optional.
	Storage workerStorage

	// Images keeps the decoded backing images, it's optional.
	Images *ImageCache

	getS3Client func(string) (s3iface.S3API, error)
	s3Clients   map[string]s3iface.S3API
	mutex       sync.Mutex
}

// Init worker internal state.
func (w *Worker) Init() error {
	if w.HTTPClient == nil {
		return errors.New("internal/service/Worker.HTTPClient can't be nil")
	}
	if w.URLSigningSecret == "" {
		return errors.New("internal/service/Worker.URLSigningSecret can't be empty")
	}
	if w.TraceExtractor == nil {
		return errors.New("internal/service/Worker.TraceExtractor can't be nil")
	}
	if len(w.StorageBucketRegion) == 0 {
		return errors.New("internal/service/Worker.StorageBucketRegion can't be empty")
	}
	if w.Annotations == nil {
		return errors.New("internal/service/Worker.Annotations can't be nil")
	}
	if w.getS3Client == nil {
		w.getS3Client = w.getBucketS3Client
	}
	w.s3Clients = make(map[string]s3iface.S3API)
	return nil
}

// Overlay renders the annotations stored at the request key over the backing image. SVG and JSON outputs are sized
// to the image while PNG outputs have the overlay burned into the image.
func (w *Worker) Overlay(ctx context.Context, req OverlayRequest, output io.Writer) (_ RenderInfo, err error) {
	span, ctx := startSpan(ctx, "Worker.Overlay")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	if req.Format == "" {
		req.Format = FormatSVG
	}
	if err := validateRequest(req); err != nil {
		return RenderInfo{}, err
	}
	if !urlsign.IsValidSignature(w.URLSigningSecret, signingBucketSize, time.Now(), req.URL) {
		return RenderInfo{}, newClientError(errors.New("invalid token"))
	}
	if req.Format == FormatPNG {
		return w.composite(ctx, req, output)
	}

	var (
		gate overlay.Gate
		raw  []byte
		img  = newRemoteImage()
	)
	gate.Attach(img)
	defer gate.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return img.load(gctx, func(ctx context.Context) (image.Image, error) {
			return w.loadImage(ctx, req.Path, req.Page)
		})
	})
	g.Go(func() (err error) {
		raw, err = w.Annotations.FetchAnnotation(gctx, req.AnnotationKey)
		if err != nil {
			return fmt.Errorf("fail to fetch the annotations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return RenderInfo{}, err
	}

	payload, warning := w.reconcile(raw)
	target := resolveTarget(gate.Size(), req.Width, req.Height)
	result := w.Renderer.RenderGated(payload, &gate, target)
	return w.write(result, req.Format, warning, output)
}

// Render a posted payload at an explicit target, without a backing image. PNG outputs are transparent.
func (w *Worker) Render(
	ctx context.Context, raw []byte, width, height int, format string, output io.Writer,
) (_ RenderInfo, err error) {
	span, _ := startSpan(ctx, "Worker.Render")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	if format == "" {
		format = FormatSVG
	}
	if err := validateFormat(format); err != nil {
		return RenderInfo{}, err
	}
	if width <= 0 || height <= 0 {
		return RenderInfo{}, newClientError(errors.New("width and height are required"))
	}
	if err := validateSize(width, height); err != nil {
		return RenderInfo{}, err
	}

	payload, err := overlay.Reconcile(raw)
	if err != nil {
		return RenderInfo{}, newClientError(err)
	}
	var warning string
	if err := payload.Validate(); err != nil {
		warning = err.Error()
	}

	target := overlay.Target{Width: float64(width), Height: float64(height)}
	result := w.Renderer.Render(payload, target)
	if format == FormatPNG {
		canvas := image.NewRGBA(image.Rect(0, 0, width, height))
		overlay.Composite(canvas, result)
		info := w.info(result, FormatPNG, warning)
		if err := encodePNG(output, canvas); err != nil {
			return RenderInfo{}, err
		}
		return info, nil
	}
	return w.write(result, format, warning, output)
}

// SaveAnnotation stores a payload produced by the authoring tool. The url must be signed the same way the overlay
// links are, the signed overlays trust what is stored under the key. Payloads that could never be rendered are
// rejected.
func (w *Worker) SaveAnnotation(ctx context.Context, url, key string, raw []byte) (err error) {
	span, ctx := startSpan(ctx, "Worker.SaveAnnotation")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	if key == "" {
		return newClientError(errors.New("missing annotation key"))
	}
	if !urlsign.IsValidSignature(w.URLSigningSecret, signingBucketSize, time.Now(), url) {
		return newClientError(errors.New("invalid token"))
	}
	payload, err := overlay.Reconcile(raw)
	if err != nil {
		return newClientError(err)
	}
	if err := payload.Validate(); err != nil {
		return newClientError(err)
	}
	if err := w.Annotations.SaveAnnotation(ctx, key, raw, w.AnnotationTTL); err != nil {
		return fmt.Errorf("fail to save the annotations: %w", err)
	}
	return nil
}

// Metadata is used to fetch the backing image metadata.
func (w *Worker) Metadata(ctx context.Context, url, path string) (_ Metadata, err error) {
	span, ctx := startSpan(ctx, "Worker.Metadata")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	if !urlsign.IsValidSignature(w.URLSigningSecret, signingBucketSize, time.Now(), url) {
		return Metadata{}, newClientError(errors.New("invalid token"))
	}

	payload, err := w.fetchFile(ctx, path)
	if err != nil {
		return Metadata{}, fmt.Errorf("fail to fetch the file: %w", err)
	}

	if !isPDF(payload) {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
		if err != nil {
			return Metadata{}, newClientError(fmt.Errorf("fail to decode the image: %w", err))
		}
		return Metadata{Width: cfg.Width, Height: cfg.Height, PageCount: 1}, nil
	}

	pageCount, err := lazypdf.PageCount(ctx, bytes.NewReader(payload))
	if err != nil {
		return Metadata{}, fmt.Errorf("fail to count the file pages: %w", err)
	}
	img, err := w.cachedImage(ctx, path, 1, payload)
	if err != nil {
		return Metadata{}, err
	}
	bounds := img.Bounds()
	return Metadata{Width: bounds.Dx(), Height: bounds.Dy(), PageCount: pageCount}, nil
}

// reconcile never fails, payloads that can't be rendered are reported as a warning and render nothing.
func (w *Worker) reconcile(raw []byte) (overlay.Payload, string) {
	payload, err := overlay.Reconcile(raw)
	if err != nil {
		w.Logger.Warn().Err(err).Msg("Stored annotation payload is invalid")
		return overlay.Payload{}, err.Error()
	}
	if err := payload.Validate(); err != nil {
		return payload, err.Error()
	}
	return payload, ""
}

func (w *Worker) write(result overlay.Overlay, format, warning string, output io.Writer) (RenderInfo, error) {
	info := w.info(result, format, warning)
	switch format {
	case FormatJSON:
		if err := json.NewEncoder(output).Encode(result); err != nil {
			return RenderInfo{}, fmt.Errorf("fail to encode the overlay: %w", err)
		}
	default:
		if err := overlay.WriteSVG(output, result); err != nil {
			return RenderInfo{}, fmt.Errorf("fail to write the overlay: %w", err)
		}
	}
	return info, nil
}

func (*Worker) info(result overlay.Overlay, format, warning string) RenderInfo {
	return RenderInfo{
		ID:          uuid.New().String(),
		ContentType: contentType(format),
		Width:       result.Width,
		Height:      result.Height,
		Primitives:  len(result.Primitives),
		Warning:     warning,
	}
}

func (w *Worker) loadImage(ctx context.Context, path string, page int) (image.Image, error) {
	if img, ok := w.Images.Get(imageKey(path, page)); ok {
		return img, nil
	}
	payload, err := w.fetchFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fail to fetch the file: %w", err)
	}
	return w.cachedImage(ctx, path, page, payload)
}

func (w *Worker) cachedImage(ctx context.Context, path string, page int, payload []byte) (image.Image, error) {
	key := imageKey(path, page)
	if img, ok := w.Images.Get(key); ok {
		return img, nil
	}
	img, err := decodeImage(ctx, page, payload)
	if err != nil {
		return nil, err
	}
	w.Images.Add(key, img)
	return img, nil
}

func decodeImage(ctx context.Context, page int, payload []byte) (_ image.Image, err error) {
	span, ctx := startSpan(ctx, "decodeImage")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	if isPDF(payload) {
		var buf bytes.Buffer
		// The first page for the clients is 1 and not zero.
		if err := lazypdf.SaveToPNG(ctx, uint16(page-1), 0, pdfScale, bytes.NewReader(payload), &buf); err != nil {
			return nil, fmt.Errorf("fail to extract the PNG from the PDF: %w", err)
		}
		payload = buf.Bytes()
	}

	// The decoders allocate the whole image from the header size, it must be checked before decoding.
	config, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, newClientError(fmt.Errorf("fail to decode the image: %w", err))
	}
	if config.Width > maxDimension || config.Height > maxDimension {
		return nil, newClientError(
			fmt.Errorf("invalid image size %dx%d, can't be bigger than %d", config.Width, config.Height, maxDimension),
		)
	}

	img, format, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, newClientError(fmt.Errorf("fail to decode the image: %w", err))
	}
	span.SetTag("format", format)
	return img, nil
}

func (w *Worker) fetchFile(ctx context.Context, path string) (_ []byte, err error) {
	span, ctx := ddTracer.StartSpanFromContext(ctx, "Worker.fetchFile")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	if strings.HasPrefix(path, "dropbox/") {
		return w.fetchFileFromDropbox(ctx, path)
	}

	fragments := strings.Split(path, "/")
	if len(fragments) < 2 {
		return nil, newClientError(errors.New("invalid path"))
	}
	bucket := fragments[0]

	s3Client, err := w.getS3Client(bucket)
	if err != nil {
		return nil, fmt.Errorf("fail to get the s3 bucket client: %w", err)
	}

	output, err := s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    aws.String(strings.Join(fragments[1:], "/")),
	})
	if err != nil {
		if awsErr, ok := err.(awserr.Error); ok && (awsErr.Code() == s3.ErrCodeNoSuchKey) {
			return nil, newNotFoundError(err)
		}
		return nil, fmt.Errorf("fail to get object: %w", err)
	}
	defer output.Body.Close()

	payload, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("fail to read the reader: %w", err)
	}
	span.SetTag("fileSize", len(payload))

	return payload, nil
}

func (w *Worker) fetchFileFromDropbox(ctx context.Context, path string) (_ []byte, err error) {
	span, ctx := ddTracer.StartSpanFromContext(ctx, "Worker.fetchFileFromDropbox")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	fileURL, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(path, "dropbox/"))
	if err != nil {
		return nil, newClientError(fmt.Errorf("fail to decode base64 path: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, string(fileURL), nil)
	if err != nil {
		return nil, fmt.Errorf("fail to create the HTTP request: %w", err)
	}

	resp, err := w.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fail to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, newNotFoundError(errors.New("dropbox returned 404"))
	} else if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("invalid status code '%d'", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fail to read the body response: %w", err)
	}

	return payload, nil
}

func (w *Worker) getBucketS3Client(bucket string) (s3iface.S3API, error) {
	region, ok := w.StorageBucketRegion[bucket]
	if !ok {
		return nil, fmt.Errorf("can't find the bucket '%s' region", bucket)
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	client, ok := w.s3Clients[region]
	if ok {
		return client, nil
	}

	sess, err := session.NewSession(&aws.Config{HTTPClient: w.HTTPClient, Region: &region})
	if err != nil {
		return nil, fmt.Errorf("fail to start a session on region '%s': %w", region, err)
	}
	sess = awstrace.WrapSession(sess)

	client = s3.New(sess, &aws.Config{HTTPClient: w.HTTPClient})
	w.s3Clients[region] = client
	return client, nil
}

func validateRequest(req OverlayRequest) error {
	if req.Page < 1 {
		return newClientError(errors.New("invalid page"))
	}
	if req.Page > maxPage {
		return newClientError(fmt.Errorf("invalid page, can't be bigger than %d", maxPage))
	}
	if err := validateSize(req.Width, req.Height); err != nil {
		return err
	}
	return validateFormat(req.Format)
}

func validateSize(width, height int) error {
	if width < 0 {
		return newClientError(errors.New("invalid width"))
	} else if width > maxDimension {
		return newClientError(fmt.Errorf("invalid width, can't be bigger than %d", maxDimension))
	}
	if height < 0 {
		return newClientError(errors.New("invalid height"))
	} else if height > maxDimension {
		return newClientError(fmt.Errorf("invalid height, can't be bigger than %d", maxDimension))
	}
	return nil
}

func validateFormat(format string) error {
	switch format {
	case FormatSVG, FormatJSON, FormatPNG:
		return nil
	default:
		return newClientError(fmt.Errorf("invalid format '%s'", format))
	}
}

func contentType(format string) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatPNG:
		return "image/png"
	default:
		return "image/svg+xml"
	}
}

// resolveTarget sizes the render from the request. A single side keeps the aspect ratio of the image and no side
// at all renders at the natural size.
func resolveTarget(natural overlay.Target, width, height int) overlay.Target {
	switch {
	case width > 0 && height > 0:
		return overlay.Target{Width: float64(width), Height: float64(height)}
	case !natural.Valid():
		return overlay.Target{Width: float64(width), Height: float64(height)}
	case width > 0:
		return overlay.Target{Width: float64(width), Height: natural.Height * float64(width) / natural.Width}
	case height > 0:
		return overlay.Target{Width: natural.Width * float64(height) / natural.Height, Height: float64(height)}
	default:
		return natural
	}
}

func imageKey(path string, page int) string {
	return fmt.Sprintf("%s#%d", path, page)
}

func isPDF(payload []byte) bool {
	return bytes.HasPrefix(payload, []byte("%PDF-"))
}
