package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	errs "github.com/matzehuels/httparchivedeps/pkg/errors"
	"github.com/matzehuels/httparchivedeps/pkg/fsutil"
	"github.com/matzehuels/httparchivedeps/pkg/manifest"
	"github.com/matzehuels/httparchivedeps/pkg/observability"
	"github.com/matzehuels/httparchivedeps/pkg/workspace"
)

const (
	defaultAddr        = ":8080"
	defaultMaxBodySize = 1 << 20 // WORKSPACE files are small
	shutdownTimeout    = 10 * time.Second
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		flags   collectorFlags
		addr    string
		maxBody int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve manifests over HTTP",
		Long: `Serve starts an HTTP server generating manifests on demand.

  POST /v1/manifest?archive=NAME[&archive=NAME...][&format=json|yaml|toml]
       body: the WORKSPACE file
  GET  /metrics   Prometheus metrics
  GET  /healthz   liveness probe`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.config)
			if err != nil {
				return err
			}
			flags.apply(cmd, &cfg)
			return c.runServe(cmd.Context(), addr, maxBody, cfg)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().Int64Var(&maxBody, "max-body", defaultMaxBodySize, "maximum WORKSPACE size in bytes")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string, maxBody int64, cfg Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	hooks := observability.NewPrometheusHooks(reg)
	observability.SetCollectorHooks(hooks)
	observability.SetGitHooks(hooks)
	defer observability.Reset()

	srv := &http.Server{
		Addr:              addr,
		Handler:           c.router(cfg, reg, maxBody),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	if cwd, werr := c.fs.Getwd(); werr == nil {
		if rerr := c.fs.RemoveAll(fsutil.Join(cwd, cfg.ScratchDir)); rerr != nil {
			c.Logger.Warn("failed to remove scratch root", "err", rerr)
		}
	}
	return err
}

// server handles manifest requests.
type server struct {
	cli     *CLI
	cfg     Config
	maxBody int64
}

// router builds the HTTP handler. Metrics are served from gatherer.
func (c *CLI) router(cfg Config, gatherer prometheus.Gatherer, maxBody int64) http.Handler {
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}
	s := &server{cli: c, cfg: cfg, maxBody: maxBody}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Post("/manifest", s.handleManifest)
	})
	return r
}

// requestLogger tags every request with an id and logs its outcome.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		logger := s.cli.Logger.With("request", id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(withLogger(r.Context(), logger)))
		logger.Debug("handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func (s *server) handleManifest(w http.ResponseWriter, r *http.Request) {
	logger := loggerFromContext(r.Context(), s.cli.Logger)
	query := r.URL.Query()

	format, err := manifest.ParseFormat(query.Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Code:    string(errs.ErrCodeInvalidInput),
				Message: "workspace exceeds maximum size",
			})
			return
		}
		writeError(w, errs.Wrap(errs.ErrCodeInvalidInput, err, "read request body"))
		return
	}
	desc, err := workspace.Parse("WORKSPACE", data)
	if err != nil {
		writeError(w, err)
		return
	}

	cfg := s.cfg
	if archives := query["archive"]; len(archives) > 0 {
		cfg.Archives = archives
	}
	// Each request clones into its own scratch root.
	cfg.ScratchDir = path.Join(s.cfg.ScratchDir, uuid.NewString())

	res, err := s.cli.collect(r.Context(), desc, cfg, logger)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Run-Id", res.RunID)
	if failed := res.Failed(); len(failed) > 0 {
		w.Header().Set("X-Failed-Archives", strings.Join(failed, ","))
	}
	if err := manifest.Write(res.Manifest, w, format); err != nil {
		logger.Error("write manifest", "err", err)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps a coded error to an HTTP status and writes it as JSON.
func writeError(w http.ResponseWriter, err error) {
	code := errs.GetCode(err)
	if code == "" {
		code = errs.ErrCodeInternal
	}
	writeJSON(w, statusFor(err, code), errorBody{Code: string(code), Message: errs.UserMessage(err)})
}

func statusFor(err error, code errs.Code) int {
	if errors.Is(err, context.Canceled) {
		return 499 // client closed request
	}
	switch code {
	case errs.ErrCodeInvalidInput, errs.ErrCodeInvalidFormat, errs.ErrCodeInvalidPath,
		errs.ErrCodeInvalidWorkspace, errs.ErrCodeInvalidArchive:
		return http.StatusBadRequest
	case errs.ErrCodeArchiveNotFound, errs.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errs.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
