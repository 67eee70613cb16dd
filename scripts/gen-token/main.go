package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"codeberg.org/vestilook/server/internal/auth"
	"codeberg.org/vestilook/server/internal/config"
	"codeberg.org/vestilook/server/internal/storage"
	"codeberg.org/vestilook/server/vestilook/profiles"
)

func main() {
	userID := flag.String("user", "", "user id (a new one is generated when empty)")
	email := flag.String("email", "test@vestilook.dev", "email claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	// same environment as the server, including .env
	cfg, err := config.LoadEnvironmentVariables()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *userID == "" {
		*userID = uuid.New().String()
	} else if _, err := uuid.Parse(*userID); err != nil {
		log.Fatalf("Invalid user id: %v", err)
	}

	ctx := context.Background()

	db, err := storage.NewPool(ctx, cfg.SupabaseConnString)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// the profile row carries the quota, so create it up front
	rec, err := profiles.NewRepository(db).GetOrCreate(ctx, *userID, cfg.Quota.FreeTotal, time.Now().Add(cfg.Quota.RenewalPeriod))
	if err != nil {
		log.Fatalf("Failed to create test profile: %v", err)
	}

	quota := rec.Quota()
	fmt.Printf("✅ Profile ready: %s (%d of %d generations left)\n", *userID, quota.Remaining, quota.Total)

	authenticator, err := auth.New(auth.Config{
		JWTSecret:     cfg.Auth.JWTSecret,
		Audience:      cfg.Auth.JWTAudience,
		SessionSecret: cfg.Auth.SessionSecret,
	})
	if err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}

	token, err := authenticator.GenerateToken(*userID, *email, *ttl)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Printf("\n🔑 Test access token (valid for %s):\n%s\n\n", ttl.String(), token)
	fmt.Printf("Export this token for the terminal client:\nexport VESTILOOK_ACCESS_TOKEN=\"%s\"\n", token)
}
