package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"elkayan/internal/audit"
	"elkayan/internal/auth"
	"elkayan/internal/config"
	"elkayan/internal/db"
	"elkayan/internal/repository"
	"elkayan/internal/service"
	"elkayan/internal/validation"
)

// Provisions accounts from a JSON array of registration records, e.g.
//
//	go run ./cmd/seed -source accounts.json
//	go run ./cmd/seed -source https://example.com/accounts.json
func main() {
	source := flag.String("source", "accounts.json", "file path or http(s) URL of the accounts JSON")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	hasher := auth.NewHasher(cfg.PasswordHMACKey, cfg.BcryptCost)
	if !hasher.Configured() {
		logger.Fatal("PASSWORD_HMAC_KEY is required to seed accounts")
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("database init", zap.Error(err))
	}
	if err := db.Migrate(gormDB, false, logger); err != nil {
		logger.Fatal("database migrate", zap.Error(err))
	}

	logger.Info("loading accounts", zap.String("source", *source))
	accounts, err := loadAccounts(*source)
	if err != nil {
		logger.Fatal("load accounts", zap.Error(err))
	}

	auditLog := audit.NewLogger(audit.NewZapSink(logger), logger)
	authService := service.NewAuthService(repository.NewUserRepository(gormDB), hasher, validation.New(), auditLog)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	seeded, err := authService.SeedAccounts(ctx, accounts)
	if err != nil {
		logger.Fatal("seed accounts", zap.Int("processed", seeded), zap.Error(err))
	}
	logger.Info("seed completed", zap.Int("processed", seeded))
}

func loadAccounts(source string) ([]service.RegisterInput, error) {
	var r io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		resp, err := http.Get(source)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch accounts: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("accounts source returned status code: %d", resp.StatusCode)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open accounts file: %w", err)
		}
		r = f
	}
	defer r.Close()

	var accounts []service.RegisterInput
	if err := json.NewDecoder(r).Decode(&accounts); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return accounts, nil
}
