package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"
)

func main() {
	dbPath := flag.String("db", "", "Path to SQLite database written by tigercfg -db. Can be set via DB_PATH env.")
	port := flag.String("port", "8080", "HTTP port. Can be set via PORT env.")
	staticDir := flag.String("static", "", "Directory for SPA static files (e.g. client/dist). Can be set via STATIC_DIR env.")
	flag.Parse()

	if *dbPath == "" {
		*dbPath = os.Getenv("DB_PATH")
	}
	if *dbPath == "" {
		log.Fatal("DB path required: set -db or DB_PATH")
	}
	if *port == "" {
		*port = os.Getenv("PORT")
	}
	if *port == "" {
		*port = "8080"
	}
	if *staticDir == "" {
		*staticDir = os.Getenv("STATIC_DIR")
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	// The API also serves databases written without a metrics table.
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS metrics (
			function_id TEXT PRIMARY KEY,
			instructions INTEGER,
			edges INTEGER,
			cyclomatic_complexity INTEGER,
			branches INTEGER,
			calls INTEGER,
			defs INTEGER,
			uses INTEGER,
			fan_in INTEGER,
			fan_out INTEGER,
			num_params INTEGER,
			recursive INTEGER
		);
	`); err != nil {
		log.Fatalf("ensure metrics table: %v", err)
	}

	app := NewApp(db, *staticDir)
	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      app.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Listening on http://localhost:%s (db=%s)", *port, *dbPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		os.Exit(1)
	}
	log.Println("Bye")
}
