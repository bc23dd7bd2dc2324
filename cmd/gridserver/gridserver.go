package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/structbio-data/atomgrid/internal/api"
	"github.com/structbio-data/atomgrid/internal/config"
	"github.com/structbio-data/atomgrid/internal/griddb"
	"github.com/structbio-data/atomgrid/internal/version"
)

var (
	listen      = flag.String("listen", "", "HTTP listen address (default: config, then :8080)")
	dbPath      = flag.String("db", "", "Path to the SQLite database file (default: config, then atomgrid.db)")
	configPath  = flag.String("config", "", "Path to a JSON config file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("gridserver %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.EmptyConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	dbFile := *dbPath
	if dbFile == "" {
		dbFile = cfg.GetDBPath()
	}

	// Subcommand dispatch before the server spins up.
	if flag.Arg(0) == "migrate" {
		griddb.RunMigrateCommand(flag.Args()[1:], dbFile)
		return
	}

	addr := *listen
	if addr == "" {
		addr = cfg.GetHTTPAddr()
	}

	gdb, err := griddb.OpenAndMigrate(dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer gdb.Close()

	hub := api.NewEventHub()
	defer hub.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(gdb, hub, cfg).ServeMux()

		server := &http.Server{
			Addr:    addr,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("Starting HTTP server on %s", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
