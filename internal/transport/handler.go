package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nitro/annoverlay/internal/service"
)

type handlerOverlayService interface {
	Overlay(context.Context, service.OverlayRequest, io.Writer) (service.RenderInfo, error)
	Render(context.Context, []byte, int, int, string, io.Writer) (service.RenderInfo, error)
	SaveAnnotation(context.Context, string, string, []byte) error
	Metadata(context.Context, string, string) (service.Metadata, error)
}

type handler struct {
	writer         writer
	logger         zerolog.Logger
	traceExtractor traceExtractor
	overlayService handlerOverlayService
}

func (h handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.writer.error(r.Context(), w, "Endpoint not found", nil, http.StatusNotFound)
}

func (h handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writer.error(r.Context(), w, "Method not allowed", nil, http.StatusMethodNotAllowed)
}

func (h handler) health(w http.ResponseWriter, r *http.Request) {
	h.writer.response(r.Context(), w, map[string]interface{}{"status": "healthy"}, http.StatusOK)
}

func (h handler) overlay(w http.ResponseWriter, r *http.Request) {
	reqID := chiMiddleware.GetReqID(r.Context())
	logger, err := h.traceExtractor(r.Context(), h.logger)
	if err != nil {
		logger.Err(err).Str("requestID", reqID).Msg("Could not extract tracing id")
		h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), nil, http.StatusInternalServerError)
		return
	}

	if status, err := h.checkTokenTTL(r); err != nil {
		logger.Err(err).Str("requestID", reqID).Msg("Invalid 'token-ttl' parameter")
		h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), nil, status)
		return
	}

	if r.URL.Query().Get("annotations") == "" {
		h.metadata(w, r)
		return
	}

	req := service.OverlayRequest{
		Path:          strings.TrimPrefix(r.URL.Path, "/overlays/"),
		AnnotationKey: r.URL.Query().Get("annotations"),
		Format:        r.URL.Query().Get("format"),
	}
	for _, param := range []struct {
		name  string
		value *int
		empty int
	}{
		{name: "page", value: &req.Page, empty: 1},
		{name: "width", value: &req.Width},
		{name: "height", value: &req.Height},
	} {
		*param.value, err = queryInt(r, param.name, param.empty)
		if err != nil {
			logger.Err(err).Str("requestID", reqID).Msgf("Invalid '%s' parameter", param.name)
			h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), nil, http.StatusBadRequest)
			return
		}
	}

	ctx := r.Context()
	if r.URL.Query().Get("cache") == "false" {
		ctx = service.WithBypass(ctx)
	}

	buf := bytes.NewBuffer([]byte{})
	req.URL = h.urlToVerify(r)
	info, err := h.overlayService.Overlay(ctx, req, buf)
	if !h.handleError(w, r, logger, err) {
		return
	}
	h.writer.render(r.Context(), w, info, buf.Bytes())
}

func (h handler) render(w http.ResponseWriter, r *http.Request) {
	reqID := chiMiddleware.GetReqID(r.Context())
	logger, err := h.traceExtractor(r.Context(), h.logger)
	if err != nil {
		logger.Err(err).Str("requestID", reqID).Msg("Could not extract tracing id")
		h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), nil, http.StatusInternalServerError)
		return
	}

	var width, height int
	for _, param := range []struct {
		name  string
		value *int
	}{
		{name: "width", value: &width},
		{name: "height", value: &height},
	} {
		*param.value, err = queryInt(r, param.name, 0)
		if err != nil {
			logger.Err(err).Str("requestID", reqID).Msgf("Invalid '%s' parameter", param.name)
			h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), nil, http.StatusBadRequest)
			return
		}
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Err(err).Str("requestID", reqID).Msg("Fail to read the request body")
		h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), nil, http.StatusBadRequest)
		return
	}

	buf := bytes.NewBuffer([]byte{})
	info, err := h.overlayService.Render(r.Context(), payload, width, height, r.URL.Query().Get("format"), buf)
	if !h.handleError(w, r, logger, err) {
		return
	}
	h.writer.render(r.Context(), w, info, buf.Bytes())
}

func (h handler) saveAnnotation(w http.ResponseWriter, r *http.Request) {
	reqID := chiMiddleware.GetReqID(r.Context())
	logger, err := h.traceExtractor(r.Context(), h.logger)
	if err != nil {
		logger.Err(err).Str("requestID", reqID).Msg("Could not extract tracing id")
		h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), nil, http.StatusInternalServerError)
		return
	}

	if status, err := h.checkTokenTTL(r); err != nil {
		logger.Err(err).Str("requestID", reqID).Msg("Invalid 'token-ttl' parameter")
		h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), nil, status)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Err(err).Str("requestID", reqID).Msg("Fail to read the request body")
		h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), nil, http.StatusBadRequest)
		return
	}

	err = h.overlayService.SaveAnnotation(r.Context(), h.urlToVerify(r), chi.URLParam(r, "key"), payload)
	if !h.handleError(w, r, logger, err) {
		return
	}
	h.writer.response(r.Context(), w, nil, http.StatusNoContent)
}

func (h handler) metadata(w http.ResponseWriter, r *http.Request) {
	reqID := chiMiddleware.GetReqID(r.Context())
	logger, err := h.traceExtractor(r.Context(), h.logger)
	if err != nil {
		logger.Err(err).Str("requestID", reqID).Msg("Could not extract tracing id")
		h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), nil, http.StatusInternalServerError)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/overlays/")
	metadata, err := h.overlayService.Metadata(r.Context(), h.urlToVerify(r), path)
	if !h.handleError(w, r, logger, err) {
		return
	}
	h.writer.response(r.Context(), w, metadata, http.StatusOK)
}

// handleError writes the error response back to the client and reports if the request should proceed.
func (h handler) handleError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) bool {
	reqID := chiMiddleware.GetReqID(r.Context())
	if ctxErr := r.Context().Err(); ctxErr != nil {
		logger.Err(ctxErr).Str("requestID", reqID).Msg("Context error")
		if ctxErr == context.Canceled {
			return false
		}
		h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), nil, http.StatusRequestTimeout)
		return false
	}
	if err == nil {
		return true
	}

	status := http.StatusInternalServerError
	var detail error
	if errors.Is(err, service.ErrClient) {
		status = http.StatusBadRequest
		detail = err
	} else if errors.Is(err, service.ErrNotFound) {
		status = http.StatusNotFound
	}
	logger.Err(err).Str("requestID", reqID).Msg("Error")
	h.writer.error(r.Context(), w, fmt.Sprintf("Request ID '%s'", reqID), detail, status)
	return false
}

// checkTokenTTL rejects the links that expired. The parameter is signed, it can't be changed by the client.
func (handler) checkTokenTTL(r *http.Request) (int, error) {
	rawTTL := r.URL.Query().Get("token-ttl")
	if rawTTL == "" {
		return 0, nil
	}
	ttl, err := strconv.ParseInt(rawTTL, 10, 64)
	if err != nil {
		return http.StatusBadRequest, fmt.Errorf("fail to parse the token ttl: %w", err)
	}
	if time.Now().Unix() > ttl {
		return http.StatusUnauthorized, errors.New("token expired")
	}
	return 0, nil
}

// Remove all the parameters, but the token, page and annotations, from the path. Other parameters can then be passed
// to the service without making the url signature invalid.
func (handler) urlToVerify(r *http.Request) string {
	q := r.URL.Query()
	for key := range q {
		if slices.Contains([]string{"page", "token", "token-ttl", "annotations"}, key) {
			continue
		}
		q.Del(key)
	}
	u := *r.URL
	u.RawQuery = q.Encode()
	return u.String()
}

func queryInt(r *http.Request, name string, empty int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return empty, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("fail to parse '%s': %w", name, err)
	}
	return value, nil
}
