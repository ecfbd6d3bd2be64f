package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/sautilabs/sauti/internal/health"
	"github.com/sautilabs/sauti/internal/observe"
	"github.com/sautilabs/sauti/internal/synth"
)

const (
	// maxUploadMemory is the in-memory threshold for multipart parsing;
	// larger uploads spill to disk.
	maxUploadMemory = 32 << 20

	shutdownGrace = 10 * time.Second
)

// Server is the HTTP surface of the gateway.
type Server struct {
	router  *Router
	synth   *synth.Service // nil when synthesis is not configured
	metrics *observe.Metrics
}

// NewServer wires the dispatch router and optional synthesis service into an
// HTTP server. synthService may be nil; the synthesis endpoints then answer
// 503.
func NewServer(router *Router, synthService *synth.Service, metrics *observe.Metrics) *Server {
	return &Server{
		router:  router,
		synth:   synthService,
		metrics: metrics,
	}
}

// Handler builds the route table. All routes run behind the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /transcribe/short", s.handleTranscribe)
	mux.HandleFunc("POST /transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /transcribe", s.handleLanguages)
	mux.HandleFunc("GET /transcribe/languages", s.handleLanguages)
	mux.HandleFunc("POST /synthesize", s.handleSynthesize)
	mux.HandleFunc("GET /audio/{file}", s.handleAudio)
	mux.Handle("GET /metrics", promhttp.Handler())

	checks := health.New(health.Checker{
		Name: "models",
		Check: func(context.Context) error {
			if s.router.ModelCount() == 0 {
				return errors.New("no models loaded")
			}
			return nil
		},
	})
	checks.Register(mux)

	return observe.Middleware(s.metrics)(mux)
}

// Run serves on addr until ctx is cancelled, then drains connections within
// [shutdownGrace].
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// handleTranscribe serves POST /transcribe and POST /transcribe/short: a
// multipart form with `lang` and `file` required, plus optional `alt`,
// `word_times`, `vocabulary`, and `scorer`.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.countTranscribe(r.Context(), "", "client_error")
		writeError(w, badRequest("parse multipart form: %v", err))
		return
	}

	lang := r.FormValue("lang")
	if lang == "" {
		s.countTranscribe(r.Context(), "", "client_error")
		writeError(w, badRequest("missing required field lang"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.countTranscribe(r.Context(), lang, "client_error")
		writeError(w, badRequest("missing required field file"))
		return
	}
	defer file.Close()

	wordTimes, err := parseBoolField(r.FormValue("word_times"))
	if err != nil {
		s.countTranscribe(r.Context(), lang, "client_error")
		writeError(w, badRequest("invalid word_times value: %v", err))
		return
	}

	req := TranscribeRequest{
		Lang:       lang,
		Alt:        r.FormValue("alt"),
		Audio:      file,
		WordTiming: wordTimes,
		Vocabulary: r.FormValue("vocabulary"),
		Scorer:     r.FormValue("scorer"),
	}

	resp, err := s.router.Transcribe(r.Context(), req)
	if err != nil {
		status := "server_error"
		if httpStatus(err) < 500 {
			status = "client_error"
		}
		s.countTranscribe(r.Context(), lang, status)
		observe.Logger(r.Context()).Error("transcription failed",
			"lang", lang, "alt", req.Alt, "err", err)
		writeError(w, err)
		return
	}

	s.countTranscribe(r.Context(), lang, "ok")
	writeJSON(w, http.StatusOK, resp)
}

// handleLanguages serves GET /transcribe and GET /transcribe/languages: the
// capability listing of every loaded model.
func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.Languages())
}

// handleSynthesize serves POST /synthesize: form fields `lang`, `text`, and
// `message_id`, all required.
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if s.synth == nil {
		writeError(w, &apiError{status: http.StatusServiceUnavailable, msg: "synthesis is not configured"})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, badRequest("parse form: %v", err))
		return
	}
	lang := r.FormValue("lang")
	text := r.FormValue("text")
	messageID := r.FormValue("message_id")
	if lang == "" || text == "" || messageID == "" {
		s.countSynthesis(r.Context(), "client_error")
		writeError(w, badRequest("lang, text, and message_id are all required"))
		return
	}

	start := time.Now()
	resp, err := s.synth.Synthesize(r.Context(), lang, text, messageID)
	if err != nil {
		if errors.Is(err, synth.ErrEmptyText) {
			s.countSynthesis(r.Context(), "client_error")
			writeError(w, badRequest("%v", err))
			return
		}
		s.countSynthesis(r.Context(), "error")
		observe.Logger(r.Context()).Error("synthesis failed",
			"lang", lang, "message_id", messageID, "err", err)
		writeError(w, serverError("%v", err))
		return
	}

	if resp.Message == synth.OutcomeSynthesized {
		s.metrics.SynthesisDuration.Record(r.Context(), time.Since(start).Seconds())
	}
	s.countSynthesis(r.Context(), resp.Message)
	writeJSON(w, http.StatusOK, resp)
}

// handleAudio serves GET /audio/{file}: synthesized artifact retrieval.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if s.synth == nil {
		writeError(w, &apiError{status: http.StatusServiceUnavailable, msg: "synthesis is not configured"})
		return
	}

	name := r.PathValue("file")
	path, err := s.synth.Store().Path(name)
	if err != nil {
		writeError(w, badRequest("invalid artifact name %q", name))
		return
	}
	if !s.synth.Store().Exists(name) {
		writeError(w, notFound("no artifact named %q", name))
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

func (s *Server) countTranscribe(ctx context.Context, model, status string) {
	s.metrics.TranscribeRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("status", status),
	))
}

func (s *Server) countSynthesis(ctx context.Context, status string) {
	s.metrics.SynthesisRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

// parseBoolField parses an optional boolean form value. Empty means false.
func parseBoolField(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
	}
}
