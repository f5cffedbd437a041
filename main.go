package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Rasimilian/Monte-Carlo-Simulation/config"
	c "github.com/Rasimilian/Monte-Carlo-Simulation/core"
	"github.com/Rasimilian/Monte-Carlo-Simulation/recorder"
	r "github.com/Rasimilian/Monte-Carlo-Simulation/repos"
	"github.com/Rasimilian/Monte-Carlo-Simulation/scheduler"
)

func main() {
	// initialize context and signal handler, listen for interrupt and term signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// load in environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not loaded: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// get postgres connection, the service runs history free without one
	var postgresConnection *r.Postgres
	if cfg.Database.ConnectionString != "" {
		postgresConnection, err = r.GetPostgresConnection(ctx, cfg.Database.ConnectionString)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer postgresConnection.Close()

		if err := postgresConnection.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	} else {
		log.Println("No database configured, runs will not be persisted")
	}

	// get the event archive, drops to a noop when no path is configured
	rec, err := getRecorder(cfg.Archive.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open event archive: %v", err)
	}
	defer rec.Close()

	// if we need to have any other connections, we can add them here
	// redis, queue, etc.

	sc := c.ServiceContext{
		Context:            ctx,
		PostgresConnection: postgresConnection,
		Recorder:           rec,
	}

	// background top up and retention jobs, config validation already made
	// sure a database is wired when these are on
	if cfg.Schedule.Enabled {
		sched := scheduler.NewScheduler(sc, scheduler.Options{
			TopUpCron:     cfg.Schedule.TopUpCron,
			RetentionCron: cfg.Schedule.RetentionCron,
			TopUpTrials:   cfg.Schedule.TopUpTrials,
			Freshness:     cfg.Schedule.Freshness(),
			MaxAge:        cfg.Schedule.MaxAge(),
			RunOnStart:    cfg.Schedule.RunOnStart,
			Defaults:      cfg.Simulation,
		})
		if err := sched.RegisterAll(); err != nil {
			log.Fatalf("Failed to register scheduled jobs: %v", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// get http server, makes all of the endpoints and routes
	s := c.GetHttpServer(sc, c.ServerOptions{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	// start http server in goroutine
	go func() {
		log.Printf("Starting MCS server on %s", s.Addr)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// golang channel, will wait here until the context is closed (ie, ctrl+C)
	<-ctx.Done()
	log.Println("Received shutdown signal, shutting down gracefully...")

	// this gives the server 10 seconds to shutdown gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped successfully")
}

func getRecorder(path string) (recorder.Recorder, error) {
	if path == "" {
		log.Println("No archive path configured, events will not be recorded")
		return recorder.NewNoopRecorder(), nil
	}

	return recorder.NewSQLiteRecorder(path)
}
