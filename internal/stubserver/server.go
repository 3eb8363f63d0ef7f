// Package stubserver is an in-memory stand-in for the remote conversion
// service. It speaks the same routes and payloads so the client can be
// exercised without a LaTeX toolchain or an audio encoder.
package stubserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/spherical/xtox/internal/domain"
	"github.com/spherical/xtox/internal/observability"
	"github.com/spherical/xtox/internal/validate"
)

const maxMemory = 32 << 20

// Config holds stub service settings.
type Config struct {
	// Token, when set, is the only bearer credential accepted.
	Token string

	MaxDocumentSize int64
	MaxAudioSize    int64

	// Latency delays every conversion, to make progress visible.
	Latency time.Duration

	Logger *observability.Logger
}

// Failure is a canned error response.
type Failure struct {
	Status int
	Detail string
}

type record struct {
	job      domain.ConversionJob
	artifact []byte
	mimeType string
	audio    bool
}

// Server holds conversions in memory.
type Server struct {
	cfg    Config
	logger *observability.Logger
	newID  func() string

	mu       sync.Mutex
	jobs     map[string]*record
	failures map[string][]Failure
	requests []string
}

// New creates a stub service.
func New(cfg Config) *Server {
	if cfg.MaxDocumentSize <= 0 {
		cfg.MaxDocumentSize = domain.MaxDocumentSize
	}
	if cfg.MaxAudioSize <= 0 {
		cfg.MaxAudioSize = domain.MaxAudioSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.Nop()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger.WithOperation("stubserver"),
		newID:    uuid.NewString,
		jobs:     make(map[string]*record),
		failures: make(map[string][]Failure),
	}
}

// Handler returns the router with every route mounted under /api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.trace)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "xtox-stub"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth)
		r.Use(s.inject)

		r.Post("/convert", s.convertDocument)
		r.Post("/convert-audio", s.convertAudio)
		r.Get("/conversion/{id}", s.status(false))
		r.Get("/audio-conversion/{id}", s.status(true))
		r.Get("/download/{id}", s.download(false))
		r.Get("/download-audio/{id}", s.download(true))
	})

	return r
}

// FailNext makes the next request to route (relative to /api, e.g.
// "/convert") answer with status and detail. Calls queue up.
func (s *Server) FailNext(route string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], Failure{Status: status, Detail: detail})
}

// Job returns a stored conversion.
func (s *Server) Job(id string) (domain.ConversionJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return domain.ConversionJob{}, false
	}
	return *rec.job.Clone(), true
}

// Requests lists the request ids seen so far, in arrival order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// trace echoes the caller's X-Request-ID and logs the exchange.
func (s *Server) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
			s.mu.Lock()
			s.requests = append(s.requests, reqID)
			s.mu.Unlock()
		}

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("trace_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] != s.cfg.Token {
			writeDetail(w, http.StatusUnauthorized, "Invalid authentication credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := strings.TrimPrefix(r.URL.Path, "/api")
		if len(route) > 1 {
			if idx := strings.Index(route[1:], "/"); idx >= 0 {
				route = route[:idx+1]
			}
		}

		s.mu.Lock()
		queue := s.failures[route]
		var f *Failure
		if len(queue) > 0 {
			f = &queue[0]
			s.failures[route] = queue[1:]
		}
		s.mu.Unlock()

		if f != nil {
			writeDetail(w, f.Status, f.Detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type upload struct {
	name string
	data []byte
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, limit int64) (*upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+maxMemory)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, sizeMessage(limit))
			return nil, false
		}
		writeDetail(w, http.StatusBadRequest, "Invalid multipart upload")
		return nil, false
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No file uploaded")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Could not read upload")
		return nil, false
	}
	if int64(len(data)) > limit {
		writeDetail(w, http.StatusRequestEntityTooLarge, sizeMessage(limit))
		return nil, false
	}
	return &upload{name: hdr.Filename, data: data}, true
}

func sizeMessage(limit int64) string {
	return fmt.Sprintf("File size exceeds %dMB limit", validate.LimitMB(limit))
}

func (s *Server) convertDocument(w http.ResponseWriter, r *http.Request) {
	autoFix := false
	if v := r.URL.Query().Get("auto_fix"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "auto_fix must be a boolean")
			return
		}
		autoFix = b
	}

	up, ok := s.readUpload(w, r, s.cfg.MaxDocumentSize)
	if !ok {
		return
	}
	if !strings.EqualFold(filepath.Ext(up.name), ".tex") {
		writeDetail(w, http.StatusBadRequest, "Only .tex files are supported")
		return
	}

	if !s.wait(r) {
		return
	}

	stem := strings.TrimSuffix(up.name, filepath.Ext(up.name))
	job := domain.ConversionJob{
		ID:       s.newID(),
		Filename: stem,
		Errors:   []string{},
		Warnings: []string{},
	}

	source := string(up.data)
	problems := lintLatex(source)
	switch {
	case len(problems) == 0:
		job.Success = true
	case autoFix:
		job.Success = true
		job.AutoFixApplied = true
		for _, p := range problems {
			job.Warnings = append(job.Warnings, "Auto-fixed: "+p)
		}
	default:
		job.Errors = problems
	}

	rec := &record{job: job, mimeType: "application/pdf"}
	if job.Success {
		rec.artifact = RenderPDF(stem)
	}
	s.store(rec)
	writeJSON(w, http.StatusOK, job)
}

// lintLatex reports the structural problems auto_fix can repair.
func lintLatex(src string) []string {
	var problems []string
	if !strings.Contains(src, `\documentclass`) {
		problems = append(problems, `Missing \documentclass declaration`)
	}
	if !strings.Contains(src, `\begin{document}`) {
		problems = append(problems, `Missing \begin{document}`)
	}
	if !strings.Contains(src, `\end{document}`) {
		problems = append(problems, `Missing \end{document}`)
	}
	return problems
}

func (s *Server) convertAudio(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := domain.AudioOptions{
		TargetFormat: domain.AudioFormat(q.Get("target_format")),
		Bitrate:      domain.Bitrate(q.Get("bitrate")),
	}
	if opts.TargetFormat == "" {
		opts.TargetFormat = domain.FormatMP3
	}
	if opts.Bitrate == "" {
		opts.Bitrate = domain.Bitrate192k
	}
	if v := q.Get("sample_rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "sample_rate must be an integer")
			return
		}
		opts.SampleRate = n
	}
	if err := opts.Validate(); err != nil {
		writeDetail(w, http.StatusBadRequest, domain.UserMessage(err))
		return
	}

	up, ok := s.readUpload(w, r, s.cfg.MaxAudioSize)
	if !ok {
		return
	}
	ext := strings.ToLower(filepath.Ext(up.name))
	supported := false
	for _, e := range domain.AudioExtensions {
		if e == ext {
			supported = true
			break
		}
	}
	if !supported {
		writeDetail(w, http.StatusBadRequest, "Unsupported audio format: "+ext)
		return
	}

	if !s.wait(r) {
		return
	}

	artifact := encodeAudio(up.data, opts)
	duration := round2(float64(len(up.data)) / bytesPerSecond(opts.Bitrate))
	sizeKB := round2(float64(len(artifact)) / 1024)

	job := domain.ConversionJob{
		ID:           s.newID(),
		Success:      true,
		Filename:     strings.TrimSuffix(up.name, filepath.Ext(up.name)),
		TargetFormat: string(opts.TargetFormat),
		Errors:       []string{},
		Warnings:     []string{},
		Duration:     &duration,
		FileSizeKB:   &sizeKB,
	}

	s.store(&record{job: job, artifact: artifact, mimeType: "audio/" + string(opts.TargetFormat), audio: true})
	writeJSON(w, http.StatusOK, job)
}

// encodeAudio fakes a re-encode by tagging the payload with the settings.
func encodeAudio(data []byte, opts domain.AudioOptions) []byte {
	header := fmt.Sprintf("XTOX-STUB %s %s %d\n", opts.TargetFormat, opts.Bitrate, opts.SampleRate)
	return append([]byte(header), data...)
}

func bytesPerSecond(b domain.Bitrate) float64 {
	kbps, err := strconv.Atoi(strings.TrimSuffix(string(b), "k"))
	if err != nil || kbps <= 0 {
		kbps = 192
	}
	return float64(kbps) * 1000 / 8
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Server) status(audio bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := s.lookup(chi.URLParam(r, "id"), audio)
		if !ok {
			writeDetail(w, http.StatusNotFound, "Conversion not found")
			return
		}
		writeJSON(w, http.StatusOK, rec.job)
	}
}

func (s *Server) download(audio bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := s.lookup(chi.URLParam(r, "id"), audio)
		if !ok || !rec.job.Success {
			writeDetail(w, http.StatusNotFound, "Converted file not found")
			return
		}

		name := rec.job.Filename + ".pdf"
		if audio {
			name = rec.job.Filename + "." + rec.job.TargetFormat
		}
		w.Header().Set("Content-Type", rec.mimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rec.artifact)
	}
}

func (s *Server) lookup(id string, audio bool) (*record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok || rec.audio != audio {
		return nil, false
	}
	return rec, true
}

func (s *Server) store(rec *record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[rec.job.ID] = rec
}

// wait applies the configured latency. It reports false when the client
// went away first.
func (s *Server) wait(r *http.Request) bool {
	if s.cfg.Latency <= 0 {
		return true
	}
	select {
	case <-time.After(s.cfg.Latency):
		return true
	case <-r.Context().Done():
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
