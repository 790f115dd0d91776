package main

import (
	"context"
	"errors"
	"log"

	"idgate/internal/auth"
	"idgate/internal/cache"
	"idgate/internal/config"
	"idgate/internal/db"
	errs "idgate/internal/errors"
	"idgate/internal/model"
	"idgate/internal/repository"
	"idgate/internal/service"
)

type seedUser struct {
	username string
	email    string
	password string
}

var seedUsers = []seedUser{
	{"alice", "alice@example.com", "correct-horse-battery"},
	{"bob", "bob@example.com", "hunter2hunter2"},
	{"carol", "carol@example.com", "s3cret-s3cret"},
}

func main() {
	log.Println("Starting seed script...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	if err := gormDB.AutoMigrate(&model.User{}, &model.SocialProfile{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	userRepo := repository.NewUserRepository(gormDB, cfg.StoreTimeout)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	sessionStore := auth.NewSessionStore(cacheClient, cfg.RefreshTokenTTL)
	authService := service.NewAuthService(userRepo, jwtService, sessionStore, cacheClient)

	ctx := context.Background()
	created := 0
	for _, u := range seedUsers {
		_, err := authService.Register(ctx, u.username, u.email, u.password, service.Client{})
		if err != nil {
			if errors.Is(err, errs.ErrConflict) {
				log.Printf("Skipping %s: already exists", u.username)
				continue
			}
			log.Fatalf("Failed to seed %s: %v", u.username, err)
		}
		created++
	}

	// A pure-OAuth account, created through the same resolution path the
	// callback endpoint uses.
	_, err = authService.HandleOAuthCallback(ctx, "google", service.OAuthProfile{
		ID:       "seed-google-1",
		Email:    "dave@example.com",
		Username: "dave",
	}, service.Client{})
	if err != nil {
		log.Fatalf("Failed to seed oauth user: %v", err)
	}

	log.Printf("Seed complete: %d password users created, 1 oauth user resolved", created)
}
