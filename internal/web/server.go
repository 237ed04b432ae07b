// Package web serves the dashboard API: start discoveries and submissions, and follow
// their progress over server-sent events.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"ytmetube/internal/bind"
	"ytmetube/internal/history"
	"ytmetube/internal/metube"
	"ytmetube/internal/progress"
	"ytmetube/internal/run"
	"ytmetube/internal/version"
	"ytmetube/internal/youtube"
)

const busyMessage = "Operation already in progress"

// Options configure a Server. MeTube and History may be nil.
type Options struct {
	Runner  *run.Runner
	Hub     *Hub
	MeTube  *metube.Client
	History *history.Store
	// AllowedOrigins defaults to any origin.
	AllowedOrigins []string
	Log            zerolog.Logger
}

// Server runs background jobs for HTTP callers, one at a time.
type Server struct {
	opts    Options
	log     zerolog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	jobs    sync.WaitGroup
	running atomic.Bool

	mu      sync.Mutex
	details []youtube.Details
	lastErr string
}

func New(opts Options) *Server {
	if opts.Hub == nil {
		opts.Hub = NewHub(0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{opts: opts, log: opts.Log, ctx: ctx, cancel: cancel}
}

// Router builds the chi router with every API route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLog)

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/state", s.handleState)
		r.Get("/events", s.handleEvents)
		r.Post("/discover", s.handleDiscover)
		r.Post("/submit", s.handleSubmit)
		r.Post("/test-video", s.handleTestVideo)
		r.Get("/queue", s.handleQueue)
		r.Post("/queue/delete", s.handleQueueDelete)
		r.Get("/runs", s.handleRuns)
	})
	return r
}

// Run listens on addr until ctx is cancelled, then drains requests and jobs.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Close cancels running jobs and waits for them to return.
func (s *Server) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.jobs.Wait()
}

// Wait blocks until the running job, if any, has finished.
func (s *Server) Wait() { s.jobs.Wait() }

// start runs fn in the background unless a job is already running.
func (s *Server) start(name string, fn func(ctx context.Context) error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	// once closed, Close may already be waiting on jobs
	if s.ctx.Err() != nil {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		defer s.running.Store(false)
		log := s.log.With().Str("job", name).Logger()
		log.Info().Msg("job started")
		err := fn(s.ctx)
		s.mu.Lock()
		s.lastErr = ""
		if err != nil {
			s.lastErr = err.Error()
		}
		s.mu.Unlock()
		if err != nil {
			log.Error().Err(err).Msg("job failed")
			s.opts.Hub.Emit(progress.Log(progress.LevelError, err.Error()))
			return
		}
		log.Info().Msg("job finished")
	}()
	return true
}

func (s *Server) busy() bool {
	return s.running.Load() || s.opts.Runner.Busy()
}

type discoverRequest struct {
	Channel     string `json:"channel" validate:"required"`
	Count       int    `json:"count" validate:"omitempty,min=1,max=50"`
	Filter      *bool  `json:"filter,omitempty"`
	WithDetails bool   `json:"with_details,omitempty"`
}

type submitRequest struct {
	Videos  []metube.Item `json:"videos,omitempty" validate:"omitempty,dive"`
	Quality string        `json:"quality,omitempty" validate:"omitempty,oneof=best 2160p 1440p 1080p 720p 480p worst audio"`
	Format  string        `json:"format,omitempty" validate:"omitempty,oneof=any mp4 m4a mp3 opus wav flac"`
}

type testVideoRequest struct {
	URL     string `json:"url" validate:"required,url"`
	Quality string `json:"quality,omitempty" validate:"omitempty,oneof=best 2160p 1440p 1080p 720p 480p worst audio"`
	Format  string `json:"format,omitempty" validate:"omitempty,oneof=any mp4 m4a mp3 opus wav flac"`
}

type deleteRequest struct {
	Where string   `json:"where" validate:"required,oneof=queue done"`
	IDs   []string `json:"ids" validate:"required,min=1"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": version.Version})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	details := append([]youtube.Details(nil), s.details...)
	lastErr := s.lastErr
	s.mu.Unlock()

	resp := map[string]any{
		"busy":        s.busy(),
		"discovered":  s.opts.Runner.Discovered(),
		"details":     details,
		"preferences": s.opts.Runner.Preferences(),
		"last_result": s.opts.Runner.LastResult(),
		"events":      s.opts.Hub.Recent(),
	}
	if lastErr != "" {
		resp["last_error"] = lastErr
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	events, unsubscribe := s.opts.Hub.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ping := time.NewTicker(25 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e := <-events:
			b, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, b)
			flusher.Flush()
		}
	}
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	req, err := bind.ParseJSON[discoverRequest](r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	count := req.Count
	if count == 0 {
		count = 5
	}
	filter := req.Filter == nil || *req.Filter

	ok := s.start("discover", func(ctx context.Context) error {
		videos, err := s.opts.Runner.Discover(ctx, req.Channel, count, filter)
		if err != nil {
			return err
		}
		var details []youtube.Details
		if req.WithDetails {
			details = s.opts.Runner.Describe(ctx, videos)
		}
		s.mu.Lock()
		s.details = details
		s.mu.Unlock()
		return nil
	})
	if !ok {
		writeError(w, http.StatusConflict, busyMessage)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "channel": req.Channel, "count": count, "filter": filter})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := bind.ParseJSON[submitRequest](r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items := req.Videos
	if len(items) == 0 {
		for _, v := range s.opts.Runner.Discovered() {
			items = append(items, metube.Item{URL: v.URL})
		}
	}
	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, "No videos to submit. Please discover videos first.")
		return
	}
	prefs := metube.Preferences{Quality: metube.Quality(req.Quality), Format: metube.Format(req.Format)}

	ok := s.start("submit", func(ctx context.Context) error {
		_, err := s.opts.Runner.Submit(ctx, items, prefs)
		return err
	})
	if !ok {
		writeError(w, http.StatusConflict, busyMessage)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "count": len(items)})
}

func (s *Server) handleTestVideo(w http.ResponseWriter, r *http.Request) {
	req, err := bind.ParseJSON[testVideoRequest](r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	prefs := metube.Preferences{Quality: metube.Quality(req.Quality), Format: metube.Format(req.Format)}

	ok := s.start("test-video", func(ctx context.Context) error {
		_, err := s.opts.Runner.Single(ctx, req.URL, prefs)
		return err
	})
	if !ok {
		writeError(w, http.StatusConflict, busyMessage)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "url": req.URL})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if s.opts.MeTube == nil {
		writeError(w, http.StatusNotFound, "MeTube client not configured")
		return
	}
	h, err := s.opts.MeTube.History(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleQueueDelete(w http.ResponseWriter, r *http.Request) {
	if s.opts.MeTube == nil {
		writeError(w, http.StatusNotFound, "MeTube client not configured")
		return
	}
	req, err := bind.ParseJSON[deleteRequest](r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.opts.MeTube.Delete(r.Context(), metube.Where(req.Where), req.IDs); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "deleted": len(req.IDs)})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeJSON(w, http.StatusOK, map[string]any{"runs": []history.Run{}})
		return
	}
	runs, err := s.opts.History.RecentRuns(r.Context(), 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
