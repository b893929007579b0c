package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gxpcore.org/internal/audit"
	"gxpcore.org/internal/httpapi"
	"gxpcore.org/internal/lifecycle"
	"gxpcore.org/internal/obs"
	"gxpcore.org/internal/rbac"
	"gxpcore.org/internal/store/memory"
	"gxpcore.org/internal/store/pg"
	"gxpcore.org/internal/stream"
	"gxpcore.org/internal/workflow"
)

var version = "0.3.0"

func main() {
	obs.Init()

	// Storage: Postgres when GXP_PG_DSN is set, otherwise in-memory
	// (local development and tests only).
	var (
		db       *sql.DB
		rbacSt   rbac.Store
		auditSt  audit.Store
		trail    audit.Reader
		recordSt workflow.Storage
	)
	if dsn := os.Getenv("GXP_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = store.DB()
		rbacSt, auditSt, trail, recordSt = store, store, store, store
	} else {
		log.Printf("GXP_PG_DSN not set, using in-memory storage")
		store := memory.New()
		rbacSt, auditSt, trail, recordSt = store, store, store, store
	}

	rbacSvc, err := rbac.NewService(rbacSt)
	if err != nil {
		log.Fatalf("rbac: %v", err)
	}
	if err := rbacSvc.EnsureBuiltinPermissions(context.Background()); err != nil {
		log.Fatalf("seed permissions: %v", err)
	}

	descs, err := lifecycle.Descriptors()
	if err != nil {
		log.Fatalf("lifecycle: %v", err)
	}
	engine, err := lifecycle.NewEngine(rbacSvc, descs)
	if err != nil {
		log.Fatalf("lifecycle: %v", err)
	}
	writer, err := audit.NewWriter(auditSt)
	if err != nil {
		log.Fatalf("audit: %v", err)
	}

	events := stream.New()
	orch, err := workflow.NewOrchestrator(recordSt, engine, writer, workflow.WithEventStream(events))
	if err != nil {
		log.Fatalf("workflow: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, rbacSvc, orch, writer, trail, events)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting gxpcore-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
