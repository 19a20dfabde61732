package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/asaancar/identity-api/internal/config"
	"github.com/asaancar/identity-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/asaancar/identity-api/internal/infrastructure/jwt"
	redisstore "github.com/asaancar/identity-api/internal/infrastructure/redis"
	s3infra "github.com/asaancar/identity-api/internal/infrastructure/s3"
	"github.com/asaancar/identity-api/internal/infrastructure/smtp"
	"github.com/asaancar/identity-api/internal/infrastructure/sns"
	"github.com/asaancar/identity-api/internal/infrastructure/verify"
	transporthttp "github.com/asaancar/identity-api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dynamoClient := dynamo.NewClient(cfg)
	if cfg.AppEnv == "development" {
		dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
	}

	rdb := redisstore.NewClient(cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		slog.Warn("JWT provider unavailable, authenticated routes disabled", "err", err)
		jwtProvider = nil
	}
	smsSender, err := sns.NewSender(cfg)
	if err != nil {
		slog.Warn("SNS sender unavailable, welcome SMS disabled", "err", err)
		smsSender = nil
	}
	verifier, err := verify.NewClient(cfg)
	if err != nil {
		slog.Warn("SMS verification provider unavailable, phone OTP disabled", "err", err)
		verifier = nil
	}

	deps := &transporthttp.Deps{
		UserRepo:      dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SessionRepo:   dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		ChallengeRepo: dynamo.NewChallengeRepo(dynamoClient, cfg.DynamoTables.Challenges),
		DeviceRepo:    dynamo.NewDeviceRepo(dynamoClient, cfg.DynamoTables.Devices),
		FileRepo:      dynamo.NewFileRepo(dynamoClient, cfg.DynamoTables.Files),
		SignupStore:   redisstore.NewSignupStore(rdb),
		S3Store:       s3infra.NewStore(s3infra.NewClient(cfg), cfg.S3BucketName),
		Mailer:        smtp.NewMailer(cfg),
		SMSSender:     smsSender,
		Verifier:      verifier,
		JWTProvider:   jwtProvider,
	}

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("starting server", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "err", err)
	}
	_ = rdb.Close()
}
