// Command viewer serves archived simulator games over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/brensch/snork/config"
	"github.com/brensch/snork/logging"
	"github.com/brensch/snork/viewer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := fs.String("listen", config.String("VIEWER_LISTEN", "127.0.0.1:8081"), "HTTP listen address")
	dataDirs := fs.String("data-dirs", config.String("VIEWER_DATA_DIRS", filepath.Join("data", "games")), "Comma-separated directories holding turn archives")
	staticDir := fs.String("static-dir", config.String("VIEWER_STATIC_DIR", ""), "Optional directory served as a single page app")
	refresh := fs.Duration("refresh", config.Duration("VIEWER_REFRESH", 30*time.Second), "How long the game index is cached")
	logFormat := fs.String("log-format", config.String("LOG_FORMAT", logging.FormatPretty), "Log format: pretty, json or text")
	logLevel := fs.String("log-level", config.String("LOG_LEVEL", "info"), "Log level: debug, info, warn or error")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	log, err := logging.New(os.Stderr, *logFormat, *logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	roots := parseDataRoots(*dataDirs)
	index := viewer.NewIndex(roots, *refresh, log)

	mux := http.NewServeMux()
	mux.Handle("/api/", viewer.NewServer(index, log).Routes())
	if *staticDir != "" {
		mux.Handle("/", spaHandler{staticPath: *staticDir, indexPath: filepath.Join(*staticDir, "index.html")})
	}

	srv := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("viewer listening", "addr", *listen, "roots", roots)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func parseDataRoots(csv string) []string {
	var out []string
	seen := map[string]bool{}
	for _, p := range strings.Split(csv, ",") {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// spaHandler serves files from staticPath and falls back to the index page
// for client-side routes.
type spaHandler struct {
	staticPath string
	indexPath  string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := filepath.Clean(r.URL.Path)
	if path != "/" {
		candidate := filepath.Join(h.staticPath, strings.TrimPrefix(path, "/"))
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			http.ServeFile(w, r, candidate)
			return
		}
	}
	http.ServeFile(w, r, h.indexPath)
}
