package http

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"virtual-secretary/internal/app"
	"virtual-secretary/internal/models"
	"virtual-secretary/internal/observability/metrics"
	"virtual-secretary/internal/service/audio"
	"virtual-secretary/internal/service/conversation"
)

type sessionResponse struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

type turnResponse struct {
	TurnID        string                     `json:"turnId"`
	State         string                     `json:"state"`
	UserText      string                     `json:"userText,omitempty"`
	AssistantText string                     `json:"assistantText"`
	Language      string                     `json:"language,omitempty"`
	Fallback      bool                       `json:"fallback"`
	Degraded      bool                       `json:"degraded"`
	Error         string                     `json:"error,omitempty"`
	Audio         string                     `json:"audio,omitempty"` // base64 WAV
	SampleRate    int                        `json:"sampleRate,omitempty"`
	AudioSeconds  float64                    `json:"audioSeconds,omitempty"`
	DurationMs    int64                      `json:"durationMs"`
	Segments      []models.TranscriptSegment `json:"segments,omitempty"`
}

type historyResponse struct {
	SessionID string        `json:"sessionId"`
	Turns     []models.Turn `json:"turns"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type handler struct {
	app *app.Application
	log zerolog.Logger
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	h := &handler{
		app: application,
		log: application.Logger.With().Str("component", "http").Logger(),
	}
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics(application.Metrics))

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Route("/{sessionId}", func(r chi.Router) {
			r.Delete("/", h.closeSession)
			r.Post("/turns", h.handleTurn)
			r.Get("/history", h.getHistory)
			r.Delete("/history", h.resetHistory)
		})
	})

	return r
}

func (h *handler) createSession(w http.ResponseWriter, _ *http.Request) {
	s := h.app.Sessions.Create()
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: s.ID, CreatedAt: s.CreatedAt})
}

func (h *handler) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Sessions.Close(chi.URLParam(r, "sessionId")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	turns, err := h.app.Sessions.History(id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	writeJSON(w, http.StatusOK, historyResponse{SessionID: id, Turns: turns})
}

func (h *handler) resetHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Sessions.ResetHistory(chi.URLParam(r, "sessionId")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTurn accepts a WAV body, or a headerless body described by the
// encoding and sample_rate query parameters.
func (h *handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if _, err := h.app.Sessions.Get(id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	src, err := h.readAudio(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	q := r.URL.Query()
	opts := conversation.DefaultTurnOptions()
	opts.Language = q.Get("language")
	if v := q.Get("use_history"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("use_history must be a boolean"))
			return
		}
		opts.UseHistory = b
	}

	res, err := h.app.Sessions.HandleTurn(r.Context(), id, src, opts)
	if res == nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := turnResponse{
		TurnID:        res.TurnID,
		State:         res.State.String(),
		UserText:      res.UserText,
		AssistantText: res.AssistantText,
		Fallback:      res.Fallback,
		Degraded:      res.Degraded,
		DurationMs:    res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	if res.Transcript != nil {
		resp.Language = res.Transcript.Language
		resp.Segments = res.Transcript.Segments
	}
	if res.Audio != nil {
		wav, err := audio.EncodeWAV(res.Audio.Audio, res.Audio.SampleRate)
		if err != nil {
			h.log.Error().Err(err).Str("turnId", res.TurnID).Msg("Failed to encode reply audio")
		} else {
			resp.Audio = base64.StdEncoding.EncodeToString(wav)
			resp.SampleRate = res.Audio.SampleRate
			resp.AudioSeconds = res.Audio.Duration().Seconds()
		}
	}

	status := http.StatusOK
	if res.State == conversation.StateErrored {
		status = http.StatusUnprocessableEntity
		resp.AssistantText = conversation.CouldNotHearMessage
	}
	writeJSON(w, status, resp)
}

func (h *handler) readAudio(w http.ResponseWriter, r *http.Request) (audio.Source, error) {
	body := http.MaxBytesReader(w, r.Body, h.app.Cfg.HTTP.MaxBodyBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		return audio.Source{}, err
	}
	if len(data) == 0 {
		return audio.Source{}, audio.ErrEmptyBuffer
	}

	q := r.URL.Query()
	encoding := q.Get("encoding")
	if encoding == "" || strings.EqualFold(encoding, "wav") {
		buf, err := audio.DecodeWAV(data)
		if err != nil {
			return audio.Source{}, err
		}
		return audio.FromBuffer(buf.Samples, buf.SampleRate), nil
	}

	rate, err := strconv.Atoi(q.Get("sample_rate"))
	if err != nil {
		return audio.Source{}, audio.ErrInvalidSampleRate
	}
	buf, err := audio.DecodeRaw(data, encoding, rate)
	if err != nil {
		return audio.Source{}, err
	}
	return audio.FromBuffer(buf.Samples, buf.SampleRate), nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, conversation.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// requestMetrics records one sample per request, labelled with the route
// pattern so session IDs do not explode the label set.
func requestMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.RecordRequest("http", r.Method+" "+route, strconv.Itoa(status), time.Since(start).Seconds())
		})
	}
}
