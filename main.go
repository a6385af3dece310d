package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"relaywatch/handlers"
	"relaywatch/internal/backend"
	"relaywatch/internal/history"
	"relaywatch/internal/queue"
	"relaywatch/internal/relaypaths"
	"relaywatch/internal/runner"
	"relaywatch/internal/session"
	"relaywatch/internal/singleton"
	"relaywatch/internal/supervisor"
	"relaywatch/middleware"
	"relaywatch/pkg/logger"
	"relaywatch/pkg/metrics"
)

const Version = "2.1.0"

func main() {
	// Flags
	var (
		port            int
		host            string
		configPath      string
		shutdownTimeout int
		logLevel        string
		logFormat       string
	)

	flag.IntVar(&port, "port", 0, "Puerto del servidor (default: 9090)")
	flag.StringVar(&host, "host", "", "Host del servidor (default: 0.0.0.0)")
	flag.StringVar(&configPath, "config", "", "Ruta al archivo de configuración")
	flag.IntVar(&shutdownTimeout, "shutdown-timeout", 30, "Timeout de shutdown en segundos")
	flag.StringVar(&logLevel, "log-level", "info", "Nivel de log (debug, info, warn, error)")
	flag.StringVar(&logFormat, "log-format", "text", "Formato de log (text, json)")
	flag.Parse()

	// Inicializar logger
	log := logger.Init(logger.Config{
		Level:  logLevel,
		Format: logFormat,
	})

	// Inicializar métricas
	metrics.Init(Version)

	// Cargar configuración
	if configPath == "" {
		configPath = filepath.Join(getExecutableDir(), "config.json")
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Warn("Error cargando configuración, usando valores por defecto",
			"path", configPath,
			"error", err,
		)
		cfg = DefaultConfig()
	}

	if port != 0 {
		cfg.Port = port
	}
	if host != "" {
		cfg.Host = host
	}

	config = cfg

	log.Info("Configuración cargada",
		"path", configPath,
		"port", cfg.Port,
		"host", cfg.Host,
		"relay_user", cfg.RelayUser,
	)

	// Un solo supervisor por layout a la vez (SPEC_FULL.md §4.J).
	guard, err := singleton.Acquire(filepath.Join(cfg.RelayRoot, "relaywatch-"+cfg.RelayUser+".pid"))
	if err != nil {
		log.Error("No se pudo adquirir el lock de instancia única", "error", err)
		os.Exit(1)
	}
	defer guard.Release()

	layout, err := relaypaths.NewLayout(cfg.RelayRoot, cfg.RelayUser, cfg.ProjectsBase)
	if err != nil {
		log.Error("No se pudo preparar el layout de directorios", "error", err)
		os.Exit(1)
	}

	q := queue.New(layout.Queue)
	hist := history.New(layout.History)
	sessions := session.New(layout.Queue, nil)

	cliRunner := runner.New(q, sessions, hist, layout)
	cliRunner.SetMaxRuntime(time.Duration(cfg.MaxJobRuntimeMinutes) * time.Minute)
	backendRunner := backend.New(q, hist)

	sup := supervisor.New(q, layout, cliRunner, backendRunner, supervisor.Options{
		MaxParallelProjects:  cfg.MaxParallelProjects,
		OldJobCleanupEnabled: cfg.OldJobCleanupEnabled,
	})

	supCtx, cancelSup := context.WithCancel(context.Background())
	supDone := make(chan error, 1)
	go func() { supDone <- sup.Run(supCtx) }()

	// Router periférico
	jobsHandler := handlers.NewJobsHandler(q, hist)
	healthHandler := handlers.NewHealthHandler(Version, func() bool {
		return heartbeatFresh(supervisorHeartbeatPath(layout))
	})
	router := NewRouter(jobsHandler, healthHandler)

	mux := chi.NewRouter()
	router.SetupRoutes(mux)

	middlewares := []func(http.Handler) http.Handler{}
	if cfg.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		middlewares = append(middlewares, rateLimiter.Middleware)
		log.Info("Rate limiting habilitado", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	}

	middlewares = append(middlewares,
		metrics.MetricsMiddleware,
		LoggingMiddleware,
		CORSMiddleware,
		AuthMiddleware,
		JSONMiddleware,
	)

	handler := ChainMiddleware(mux, middlewares...)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Servidor iniciando",
			"version", Version,
			"address", addr,
			"queue_dir", layout.Queue,
		)
		printEndpoints(log)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Error("Error iniciando servidor", "error", err)
		cancelSup()
		os.Exit(1)
	case err := <-supDone:
		log.Error("El supervisor terminó inesperadamente", "error", err)
	case sig := <-sigChan:
		log.Info("Señal recibida, iniciando shutdown", "signal", sig.String())
	}

	gracefulShutdown(log, server, cancelSup, supDone, time.Duration(shutdownTimeout)*time.Second)
}

// gracefulShutdown realiza un shutdown ordenado: detiene el supervisor
// (que drena los jobs en curso) y luego el servidor HTTP, sin usar
// time.Sleep.
func gracefulShutdown(log *logger.Logger, server *http.Server, cancelSup context.CancelFunc, supDone <-chan error, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info("Iniciando graceful shutdown", "timeout", timeout.String())

	log.Info("Deteniendo supervisor")
	cancelSup()
	select {
	case <-supDone:
		log.Debug("Supervisor detenido correctamente")
	case <-ctx.Done():
		log.Warn("Timeout esperando cierre del supervisor")
	}

	log.Info("Cerrando servidor HTTP")
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Error en shutdown del servidor", "error", err)
	}

	log.Info("Shutdown completado")
}

// getExecutableDir retorna el directorio del ejecutable
func getExecutableDir() string {
	ex, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(ex)
}

// supervisorHeartbeatPath mirrors internal/supervisor's private
// heartbeatPath so the readiness probe can read the same file without
// exporting supervisor internals.
func supervisorHeartbeatPath(layout *relaypaths.Layout) string {
	return filepath.Join(layout.Queue, "watcher.heartbeat")
}

// heartbeatFresh reports whether the heartbeat file was written within
// the last two stale-check intervals.
func heartbeatFresh(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < 4*time.Minute
}

// printEndpoints imprime los endpoints disponibles
func printEndpoints(log *logger.Logger) {
	log.Debug("Endpoints disponibles",
		"health", []string{"GET /api/health", "GET /api/ready"},
		"jobs", []string{"GET /api/jobs", "POST /api/jobs", "GET /api/jobs/{id}", "DELETE /api/jobs/{id}"},
		"answers", []string{"POST /api/jobs/{id}/answers"},
		"stream", []string{"GET /api/jobs/{id}/ws"},
		"history", []string{"GET /api/history/{project}"},
	)
}
