package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"aigate.org/internal/auth"
	"aigate.org/internal/config"
	"aigate.org/internal/httpapi"
	"aigate.org/internal/obs"
	"aigate.org/internal/upstream"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	db, err := sql.Open("pgx", cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	codec, err := auth.NewCodec(cfg.JWTSecret, cfg.Issuer, cfg.AccessTTL)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}
	svc, err := auth.NewService(auth.NewPGStore(db), codec)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	aiService, err := upstream.New("ai-service", cfg.AIServiceURL)
	if err != nil {
		log.Fatalf("ai-service upstream: %v", err)
	}
	governance, err := upstream.New("governance", cfg.GovernanceURL)
	if err != nil {
		log.Fatalf("governance upstream: %v", err)
	}

	probe := httpapi.ReadyProbe{
		DB:        db,
		Upstreams: []*upstream.Client{aiService, governance},
	}
	api := httpapi.New(svc, probe, version,
		httpapi.WithCORSOrigins(cfg.CORSOrigins),
		httpapi.WithBodyLimit(cfg.MaxBodyBytes),
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec),
		httpapi.WithUpstream(aiService, "/api/v1/ai/"),
		httpapi.WithUpstream(governance, "/api/v1/governance/"),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting api-gateway %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	var grpcSrv *httpapi.GRPCHealthServer
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcSrv = httpapi.NewGRPCHealthServer(probe, 0)
		log.Printf("Serving grpc health on %s", cfg.GRPCAddr)
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if grpcSrv != nil {
		grpcSrv.Stop()
	}
	_ = db.Close()
	log.Println("Stopped")
}
