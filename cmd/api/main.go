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

	"github.com/fitgrid/auth-service/internal/config"
	"github.com/fitgrid/auth-service/internal/repository/postgres"
	redisrepo "github.com/fitgrid/auth-service/internal/repository/redis"
	"github.com/fitgrid/auth-service/internal/service/session"
	transportHttp "github.com/fitgrid/auth-service/internal/transport/http"
	"github.com/fitgrid/auth-service/internal/transport/http/middleware"
	"github.com/fitgrid/auth-service/pkg/auth"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		// Signing-key misconfiguration must abort startup, never fail
		// per-request.
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := postgres.Open(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetimeMin)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("[POSTGRES] Connected successfully")

	if err := postgres.RunMigrations(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	redisClient, err := redisrepo.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("[REDIS] Connected successfully")

	codec, err := auth.NewTokenCodec(
		auth.SigningDomain{
			Secret:   []byte(cfg.AccessTokenSecret),
			Issuer:   cfg.AccessTokenIssuer,
			Audience: cfg.AccessTokenAudience,
			TTL:      cfg.AccessTokenTTL,
		},
		auth.SigningDomain{
			Secret:   []byte(cfg.RefreshTokenSecret),
			Issuer:   cfg.RefreshTokenIssuer,
			Audience: cfg.RefreshTokenAudience,
			TTL:      cfg.RefreshTokenTTL,
		},
	)
	if err != nil {
		log.Fatalf("Failed to build token codec: %v", err)
	}

	userRepo := postgres.NewUserRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)
	refreshStore := redisrepo.NewRefreshTokenStore(redisClient)
	userCache := redisrepo.NewUserCache(redisClient, cfg.UserCacheTTL)

	authService := session.NewAuthService(userRepo, sessionRepo, refreshStore, userCache, codec, cfg.BcryptCost)
	authHandler := transportHttp.NewAuthHandler(authService)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/auth/logout", middleware.AuthMiddleware(authHandler.Logout, authService))
	mux.HandleFunc("GET /api/auth/me", middleware.AuthMiddleware(authHandler.Me, authService))
	mux.HandleFunc("GET /api/auth/sessions", middleware.AuthMiddleware(authHandler.Sessions, authService))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Expired audit rows are swept on a timer; live validity never depends
	// on this.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(12 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -cfg.SessionRetentionDays)
				deleted, err := sessionRepo.DeleteExpiredBefore(sweepCtx, cutoff)
				if err != nil {
					log.Printf("[CLEANUP] Warning: session sweep failed: %v", err)
					continue
				}
				if deleted > 0 {
					log.Printf("[CLEANUP] Removed %d expired sessions", deleted)
				}
			}
		}
	}()

	go func() {
		log.Printf("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
