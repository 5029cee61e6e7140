// Package app assembles the process: logging router, hub, and HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	server "emberreach/server"
	"emberreach/server/logging"
	loggingsinks "emberreach/server/logging/sinks"
)

const shutdownGrace = 5 * time.Second

// Run starts the server and blocks until ctx is canceled or the listener
// fails.
func Run(ctx context.Context) error {
	logCfg := logging.DefaultConfig()
	if raw := os.Getenv("LOG_SINKS"); raw != "" {
		logCfg.EnabledSinks = splitList(raw)
	}
	if raw := os.Getenv("LOG_JSON_PATH"); raw != "" {
		logCfg.JSON.FilePath = raw
	}
	if raw := os.Getenv("LOG_MIN_SEVERITY"); raw != "" {
		if sev, ok := parseSeverity(raw); ok {
			logCfg.MinimumSeverity = sev
		} else {
			log.Printf("invalid LOG_MIN_SEVERITY=%q, keeping default", raw)
		}
	}

	sinks := make([]logging.NamedSink, 0, 2)
	if logCfg.HasSink("console") {
		sinks = append(sinks, logging.NamedSink{Name: "console", Sink: loggingsinks.NewConsoleSink(os.Stdout)})
	}
	if logCfg.HasSink("json") && logCfg.JSON.FilePath != "" {
		jsonSink, err := loggingsinks.NewJSONSink(logCfg.JSON.FilePath)
		if err != nil {
			return fmt.Errorf("open json sink: %w", err)
		}
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: jsonSink})
	}

	router := logging.NewRouter(logging.SystemClock{}, logCfg, sinks)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := router.Close(closeCtx); err != nil {
			log.Printf("logging router close: %v", err)
		}
	}()

	worldCfg := server.DefaultWorldConfig()
	if raw := os.Getenv("WORLD_SEED"); raw != "" {
		worldCfg.Seed = raw
	}
	if raw := os.Getenv("WORLD_OBSTACLES"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			worldCfg.Obstacles = value
		} else {
			log.Printf("invalid WORLD_OBSTACLES=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("WORLD_NPCS"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			worldCfg.NPCs = value
		} else {
			log.Printf("invalid WORLD_NPCS=%q: %v", raw, err)
		}
	}

	hub := server.NewHub(worldCfg, router)
	simCtx, stopSim := context.WithCancel(ctx)
	defer stopSim()
	go hub.RunSimulation(simCtx)

	addr := ":8080"
	if raw := os.Getenv("LISTEN_ADDR"); raw != "" {
		addr = raw
	}
	srv := &http.Server{Addr: addr, Handler: server.NewMux(hub)}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Printf("server listening on %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

func parseSeverity(raw string) (logging.Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return logging.SeverityDebug, true
	case "info":
		return logging.SeverityInfo, true
	case "warn", "warning":
		return logging.SeverityWarn, true
	case "error":
		return logging.SeverityError, true
	default:
		return 0, false
	}
}
