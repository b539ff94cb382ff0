// Package handler routes inbound requests to the local lyrics pipeline or the
// upstream forwarder.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/propagation"

	"lyrics-relay/internal/domain"
	"lyrics-relay/internal/metrics"
	"lyrics-relay/internal/proxy"
)

// RequestClassifier decides whether a request is answered locally.
type RequestClassifier interface {
	Classify(method, path string) (domain.LocalRequest, bool)
}

// LyricsService produces lyrics for a track.
type LyricsService interface {
	GetLyrics(ctx context.Context, trackID string) (*domain.LyricsPayload, error)
}

// Forwarder relays a request to the real upstream.
type Forwarder interface {
	Forward(ctx context.Context, r *http.Request) (*proxy.Response, error)
}

// LyricsHandler answers lyrics requests itself and forwards everything else.
type LyricsHandler struct {
	classifier RequestClassifier
	service    LyricsService
	forwarder  Forwarder
	envelope   EnvelopeConfig
	logger     *slog.Logger
}

// NewLyricsHandler creates the relay handler.
func NewLyricsHandler(
	classifier RequestClassifier,
	service LyricsService,
	forwarder Forwarder,
	envelope EnvelopeConfig,
	logger *slog.Logger,
) *LyricsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LyricsHandler{
		classifier: classifier,
		service:    service,
		forwarder:  forwarder,
		envelope:   envelope,
		logger:     logger,
	}
}

// tracePropagator reads the W3C traceparent the client sent, so request logs
// carry its trace_id.
var tracePropagator = propagation.TraceContext{}

// ServeHTTP implements http.Handler. Every answer carries Connection: close,
// which makes net/http close the connection after the reply for HTTP/1.0
// and HTTP/1.1 clients alike.
func (h *LyricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r = r.WithContext(tracePropagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header)))
	w.Header().Set("Connection", "close")

	logger := h.logger.With(
		"request_id", uuid.NewString(),
		"method", r.Method,
		"host", r.Host,
	)

	target := r.RequestURI
	if target == "" {
		target = r.URL.RequestURI()
	}

	if local, ok := h.classifier.Classify(r.Method, target); ok {
		logger.InfoContext(r.Context(), "serving lyrics locally",
			"track_id", local.TrackID,
			"image_url", local.ImageURL)
		h.serveLyrics(w, r, local, logger)
		return
	}

	logger.DebugContext(r.Context(), "forwarding upstream", "target", target)
	h.serveForward(w, r, logger)
}

func (h *LyricsHandler) serveLyrics(w http.ResponseWriter, r *http.Request, local domain.LocalRequest, logger *slog.Logger) {
	payload, err := h.service.GetLyrics(r.Context(), local.TrackID)
	if err != nil {
		logger.InfoContext(r.Context(), "lyrics not found", "track_id", local.TrackID, "error", err)
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	body, err := MarshalEnvelope(payload, h.envelope)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to encode lyrics envelope", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *LyricsHandler) serveForward(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	start := time.Now()

	resp, err := h.forwarder.Forward(r.Context(), r)
	if err != nil {
		var upErr *proxy.UpstreamError
		if !errors.As(err, &upErr) {
			upErr = &proxy.UpstreamError{Kind: proxy.KindTransport, Err: err}
		}
		metrics.RecordForwardError(upErr.Kind.String())

		if upErr.HasStatus() {
			logger.WarnContext(r.Context(), "upstream failed, relaying status",
				"status", upErr.StatusCode,
				"error", err)
			http.Error(w, upErr.Reason, upErr.StatusCode)
			return
		}

		logger.ErrorContext(r.Context(), "upstream unreachable, closing connection", "error", err)
		closeConnection(w)
		return
	}

	metrics.RecordForward(r.Method, resp.StatusCode, time.Since(start).Seconds())
	writeUpstreamResponse(w, resp)
}

// writeUpstreamResponse relays a buffered upstream response verbatim.
// net/http would otherwise add Date and a sniffed Content-Type the upstream
// never sent; a nil value suppresses them.
func writeUpstreamResponse(w http.ResponseWriter, resp *proxy.Response) {
	dst := w.Header()
	for name, values := range resp.Header {
		dst[name] = append([]string(nil), values...)
	}
	for _, name := range []string{"Content-Type", "Date"} {
		if _, ok := resp.Header[name]; !ok {
			dst[name] = nil
		}
	}
	dst.Set("Connection", "close")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

// closeConnection drops the client connection without writing a response.
func closeConnection(w http.ResponseWriter) {
	if hj, ok := w.(http.Hijacker); ok {
		if conn, _, err := hj.Hijack(); err == nil {
			conn.Close()
			return
		}
	}
	// net/http closes the connection quietly on this sentinel.
	panic(http.ErrAbortHandler)
}
