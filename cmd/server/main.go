// server is the codebase retrieval core's MCP entrypoint: it loads
// configuration, wires the DI container, registers the MCP tool
// surface, and serves it over stdio or a small HTTP surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"codecortex/internal/config"
	"codecortex/internal/di"
	"codecortex/internal/formatting"
	codecortexmcp "codecortex/internal/mcp"
	"codecortex/internal/resilience"
)

func main() {
	var (
		mode = flag.String("mode", "stdio", "Server mode: stdio or http")
		addr = flag.String("addr", ":9080", "HTTP server address (when mode=http)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container, err := di.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build container: %v", err)
	}
	if err := container.HealthCheckAll(ctx); err != nil {
		log.Printf("warning: startup health check degraded: %v", err)
	}

	mcpServer := codecortexmcp.NewServer(container, "codecortex", "0.1.0")

	switch *mode {
	case "stdio":
		log.Printf("starting codecortex MCP server in stdio mode")
		if err := mcpServer.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("mcp server failed: %v", err)
		}
	case "http":
		log.Printf("starting codecortex HTTP server on %s", *addr)
		if err := serveHTTP(ctx, container, *addr); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("http server failed: %v", err)
		}
	default:
		log.Fatalf("invalid mode %q: use 'stdio' or 'http'", *mode)
	}
}

// serveHTTP exposes a small debug/ops surface alongside the stdio MCP
// protocol: health, extraction status, and a raw retrieve endpoint for
// clients that would rather speak plain HTTP than MCP.
func serveHTTP(ctx context.Context, container *di.Container, addr string) error {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", handleHealth(container))
	r.Get("/status", handleStatus(container))

	r.Group(func(protected chi.Router) {
		protected.Use(requireBearerToken(container.Config().Server.APITokenHash))
		protected.Post("/retrieve", handleRetrieve(container))
		protected.Get("/debug/spans", handleDebugSpans(container))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func handleHealth(container *di.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := container.HealthCheck.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	}
}

func handleStatus(container *di.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := container.Status.Report()
		if err != nil {
			http.Error(w, fmt.Sprintf("status unavailable: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	}
}

// requireBearerToken checks the Authorization header against tokenHash
// with bcrypt, the same comparison the teacher's internal/security/auth.go
// uses for password verification. An empty hash disables the check.
func requireBearerToken(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tokenHash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)) != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

var spanUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleDebugSpans upgrades to a websocket connection and streams every
// resilience.Span the pipeline emits from that point on, letting an
// operator watch stage timings live instead of tailing logs.
func handleDebugSpans(container *di.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := spanUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("debug/spans: upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		spans := make(chan resilience.Span, 32)
		container.Instrumentation.Subscribe(func(span resilience.Span) {
			select {
			case spans <- span:
			default:
			}
		})

		for {
			select {
			case <-r.Context().Done():
				return
			case span := <-spans:
				if err := conn.WriteJSON(spanMessage(span)); err != nil {
					return
				}
			}
		}
	}
}

func spanMessage(span resilience.Span) map[string]interface{} {
	msg := map[string]interface{}{
		"name":       span.Name,
		"started_at": span.StartedAt,
		"duration":   span.Duration.String(),
	}
	if span.Err != nil {
		msg["error"] = span.Err.Error()
	}
	return msg
}

func handleRetrieve(container *di.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string `json:"query"`
			Budget    int    `json:"budget"`
			Formatter string `json:"formatter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if body.Query == "" {
			http.Error(w, "query is required", http.StatusBadRequest)
			return
		}

		result := container.Retriever.RetrieveWithFormatter(r.Context(), body.Query, body.Budget, formatting.Name(body.Formatter))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}
