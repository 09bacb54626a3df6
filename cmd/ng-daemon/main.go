package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NetGuard/internal/collector"
	"NetGuard/internal/config"
	"NetGuard/internal/engine/manager"
	"NetGuard/internal/factory"
	"NetGuard/internal/notify"

	"github.com/gorilla/mux"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML configuration file.")
	flag.Parse()

	log.Println("Starting ng-daemon...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	collectTimeout := 10 * time.Second
	if cfg.Engine.CollectTimeout != "" {
		collectTimeout, err = time.ParseDuration(cfg.Engine.CollectTimeout)
		if err != nil {
			log.Fatalf("Invalid collect_timeout: %v", err)
		}
	}

	// 2. Build the collaborators
	collaborators := manager.Collaborators{
		Lister:     collector.NewTCPLister(collectTimeout),
		Inspector:  collector.NewInspector(),
		Relauncher: collector.NewExecRelauncher(),
	}

	if cfg.NATS.Enabled {
		sink, err := notify.NewNATSSink(cfg.NATS)
		if err != nil {
			log.Fatalf("Failed to connect event sink: %v", err)
		}
		collaborators.Sink = sink
	}

	writers, err := factory.Writers(cfg)
	if err != nil {
		log.Fatalf("Failed to create snapshot writers: %v", err)
	}
	collaborators.Writers = writers

	// 3. Build and start the engine
	mgr, err := manager.New(cfg, collaborators)
	if err != nil {
		log.Fatalf("Failed to create manager: %v", err)
	}
	mgr.Start()

	// 4. Initialize router
	r := mux.NewRouter()
	apiHandler := &APIHandler{mgr: mgr}

	r.HandleFunc("/api/v1/refresh", apiHandler.refreshHandler).Methods("POST")
	r.HandleFunc("/api/v1/ports", apiHandler.portsHandler).Methods("GET")
	r.HandleFunc("/api/v1/groups", apiHandler.groupsHandler).Methods("GET")
	r.HandleFunc("/api/v1/groups/{name}", apiHandler.groupResolveHandler).Methods("GET")
	r.HandleFunc("/api/v1/processes/terminate", apiHandler.terminateHandler).Methods("POST")
	r.HandleFunc("/api/v1/processes/restart", apiHandler.restartHandler).Methods("POST")
	r.HandleFunc("/api/v1/processes/{pid}", apiHandler.processHandler).Methods("GET")
	r.HandleFunc("/api/v1/monitor/start", apiHandler.monitorStartHandler).Methods("POST")
	r.HandleFunc("/api/v1/monitor/stop", apiHandler.monitorStopHandler).Methods("POST")
	r.HandleFunc("/api/v1/monitor/events", apiHandler.monitorEventsHandler).Methods("GET")
	r.HandleFunc("/api/v1/history", apiHandler.historyHandler).Methods("GET")

	// 5. Start HTTP server
	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Printf("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// 6. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	mgr.Stop()
	log.Println("ng-daemon exited.")
}
