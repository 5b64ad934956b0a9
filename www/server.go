package www

import (
	"context"
	"crypto/rand"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/angas/gasquota/billing"
	"github.com/angas/gasquota/config"
	"github.com/angas/gasquota/database"
	"github.com/angas/gasquota/dates"
	"github.com/angas/gasquota/metrics"
	"github.com/angas/gasquota/quota"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

type Server struct {
	logger  *slog.Logger
	config  config.AppConfigApi
	svc     *billing.Service
	db      *database.Database
	hub     *Hub
	tm      *TemplateManager
	flashes *flashes
	router  *mux.Router
	version string
}

//go:embed static
var embeddedStaticDir embed.FS

func StartServer(svc *billing.Service, db *database.Database, config config.AppConfigApi, version string) (*Server, error) {
	logger := slog.Default().With("module", "www")
	tm, err := NewTemplateManager(logger, config.WwwDir)
	if err != nil {
		return nil, fmt.Errorf("template manager initialization: %w", err)
	}

	secret := []byte(config.SessionSecret)
	if len(secret) == 0 {
		// Flash messages then only survive until restart, which is fine
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generating session secret: %w", err)
		}
	}

	s := &Server{
		logger:  logger,
		config:  config,
		svc:     svc,
		db:      db,
		hub:     NewHub(logger),
		tm:      tm,
		flashes: newFlashes(logger, secret),
		version: version,
	}
	s.router = s.routes()

	go s.hub.Run()

	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.Handle("/", NewIndexHandler(s.logger.With(slog.String("handler", "index")), s.svc, s.tm, s.flashes, s.version)).Methods(http.MethodGet)

	forms := newFormHandlers(s.logger.With(slog.String("handler", "forms")), s.svc, s.flashes)
	r.HandleFunc("/add-reading", forms.addReading).Methods(http.MethodPost)
	r.HandleFunc("/delete-reading", forms.deleteReading).Methods(http.MethodPost)
	r.HandleFunc("/delete-calc", forms.deleteCalc).Methods(http.MethodPost)
	r.HandleFunc("/compute-latest", forms.computeLatest).Methods(http.MethodPost)
	r.HandleFunc("/compute", forms.compute).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	// An empty origin list would make cors allow every origin
	if len(s.config.CorsOrigins) > 0 {
		api.Use(cors.New(cors.Options{
			AllowedOrigins: s.config.CorsOrigins,
			AllowedMethods: []string{http.MethodGet},
		}).Handler)
	}
	apiLogger := s.logger.With(slog.String("handler", "api"))
	api.Handle("/readings", NewReadingsApiHandler(apiLogger, s.svc)).Methods(http.MethodGet, http.MethodOptions)
	api.Handle("/calcs", NewCalcsApiHandler(apiLogger, s.svc)).Methods(http.MethodGet, http.MethodOptions)
	api.Handle("/quota", NewQuotaApiHandler(apiLogger, s.svc)).Methods(http.MethodGet, http.MethodOptions)

	r.Handle("/calcs/{id:[0-9]+}/pdf", NewStatementHandler(s.logger.With(slog.String("handler", "statement")), s.svc)).Methods(http.MethodGet)
	r.Handle("/chart", NewChartHandler(s.logger.With(slog.String("handler", "chart")), s.svc)).Methods(http.MethodGet)
	r.Handle("/log", NewLogHandler(s.logger.With(slog.String("handler", "log")), s.db, s.tm)).Methods(http.MethodGet)
	r.Handle("/healthz", NewHealthHandler(s.db)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get("User-Agent")
		client, err := NewClient(s.hub, w, r, name)
		if err != nil {
			s.logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}
		s.hub.Register <- client
		go client.WritePump()
		go client.ReadPump()

		// New clients get the current state right away
		s.BroadcastQuota(r.Context())
	})

	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", staticFilesHandler(s.config.WwwDir)))

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := metrics.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tmpl, err := cr.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		metrics.ObserveHTTPRequest(route, r.Method, rec.Status, time.Since(start))

		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("url", r.URL.String()),
			slog.Int("status", rec.Status),
			slog.String("remoteAddr", r.RemoteAddr))
	})
}

// BroadcastQuota pushes today's quota summary to all websocket clients.
func (s *Server) BroadcastQuota(ctx context.Context) {
	st, err := s.svc.QuotaStatus(ctx, dates.Today())
	if err != nil {
		s.logger.Error("resolving quota status", slog.Any("error", err))
		return
	}
	s.PublishQuota(st)
}

func (s *Server) PublishQuota(st quota.Status) {
	metrics.SetRemainingQuota(st.RemainingMJ)

	buf, err := s.tm.Execute("quota_summary.html", st)
	if err != nil {
		s.logger.Error("template execution failed", slog.Any("error", err))
		return
	}
	s.hub.Broadcast <- buf.Bytes()
}

func (s *Server) Run(ctx context.Context) {
	addr := fmt.Sprintf("%s:%d", s.config.Address, s.config.Port)
	s.logger.Info("starting server...", slog.String("addr", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErrors := make(chan error, 1)

	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", slog.Any("error", err))
		}

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
		}
	}
}

func staticFilesHandler(extDir *string) http.Handler {
	if extDir != nil && *extDir != "" {
		staticDir := path.Join(*extDir, "static")
		if _, err := os.Stat(staticDir); err == nil {
			return http.FileServer(http.Dir(staticDir))
		}
	}

	fsys, err := fs.Sub(embeddedStaticDir, "static")
	if err != nil {
		log.Panic(err)
	}
	return http.FileServer(http.FS(fsys))
}
