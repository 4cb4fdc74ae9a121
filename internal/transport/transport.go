package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nitro/annoverlay/internal/service"
)

const (
	maxBodySize    = 100000  // 100kb.
	maxPayloadSize = 1 << 20 // 1mb, annotation payloads with freehand paths are big.
	maxLoggedBody  = 4096

	headerRenderID = "X-Render-ID"
)

type traceExtractor = service.TraceExtractor

type writer struct {
	logger         zerolog.Logger
	traceExtractor traceExtractor
}

func (wrt writer) response(ctx context.Context, w http.ResponseWriter, r interface{}, status int) {
	logger, err := wrt.traceExtractor(ctx, wrt.logger)
	if err != nil {
		logger.Err(err).Msg("Fail to extract the tracing ids")
		return
	}

	if r == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	content, err := json.Marshal(r)
	if err != nil {
		logger.Err(err).Msg("Fail to marshal the response")
		return
	}

	writed, err := w.Write(content)
	if err != nil {
		logger.Err(err).Msg("Fail to write the payload")
		return
	}
	if writed != len(content) {
		logger.Error().Msgf("Invalid quantity of writed bytes, expected %d and got %d", len(content), writed)
	}
}

// render writes the rendered overlay as is, the render details go at the headers.
func (wrt writer) render(ctx context.Context, w http.ResponseWriter, info service.RenderInfo, payload []byte) {
	logger, err := wrt.traceExtractor(ctx, wrt.logger)
	if err != nil {
		logger.Err(err).Msg("Fail to extract the tracing ids")
		return
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set(headerRenderID, info.ID)
	if info.Warning != "" {
		w.Header().Set("X-Overlay-Warning", info.Warning)
	}
	if info.Cached {
		w.Header().Set("X-Overlay-Cache", "hit")
	}
	w.WriteHeader(http.StatusOK)

	writed, err := w.Write(payload)
	if err != nil {
		logger.Err(err).Str("renderID", info.ID).Msg("Fail to write the render")
		return
	}
	if writed != len(payload) {
		logger.Error().Msgf("Invalid quantity of writed bytes, expected %d and got %d", len(payload), writed)
	}
}

// Error is used to generate a proper error content to be sent to the client.
func (wrt writer) error(ctx context.Context, w http.ResponseWriter, title string, err error, status int) {
	resp := struct {
		Error struct {
			Title  string `json:"title"`
			Detail string `json:"detail,omitempty"`
		} `json:"error"`
	}{}
	resp.Error.Title = title
	if err != nil {
		resp.Error.Detail = err.Error()
	}
	wrt.response(ctx, w, &resp, status)
}
