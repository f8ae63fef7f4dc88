package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/eggman-xyz/eggman-go/pkg/config"
	"github.com/eggman-xyz/eggman-go/pkg/handlers"
	"github.com/eggman-xyz/eggman-go/pkg/ledger"
	"github.com/eggman-xyz/eggman-go/pkg/middleware"
	"github.com/eggman-xyz/eggman-go/pkg/payment"
	"github.com/eggman-xyz/eggman-go/pkg/registry"
	"github.com/eggman-xyz/eggman-go/pkg/storage"
)

// uploadTimeout bounds the whole /store pipeline: local write plus the
// remote storage attempt.
const uploadTimeout = 5 * time.Minute

func main() {
	// Configure logging
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Token ledger: in-memory by default, Redis when configured
	tokenLedger := buildLedger(cfg)
	scheduler := ledger.NewExpiryScheduler(tokenLedger, cfg.TokenTTL)
	defer scheduler.Stop()

	// Blob storage
	blobs := storage.NewWalrusClient(cfg.WalrusPublisherURL, cfg.WalrusAggregatorURL, cfg.WalrusEpochs)

	// Chain registry (optional)
	var reg registry.Registry
	if cfg.RegistryEnabled() {
		client, err := cfg.InitializeRegistry()
		if err != nil {
			log.Fatalf("Failed to initialize registry: %v", err)
		}
		reg = client
		log.Printf("Registry writes enabled on %s with signer %s", cfg.Network, client.SignerAddress().Hex())
	} else {
		log.Printf("Registry not configured; uploads will not be recorded on-chain")
	}

	// Payment gate
	x402 := payment.NewMiddleware(cfg.FacilitatorURL)
	priceTag := payment.NewPriceTag(
		cfg.Network,
		cfg.Price,
		cfg.PayTo,
		"/pay",
		"one-time token for a single file upload",
		common.HexToAddress(cfg.Asset),
	)

	handler := handlers.New(tokenLedger, scheduler, blobs, reg, cfg.TmpDir)

	limiter := middleware.NewRateLimiter(100, 20)

	r := chi.NewRouter()
	r.Use(selectLogging())
	r.Use(corsMiddleware)
	r.Use(middleware.RateLimit(limiter))

	r.Method(http.MethodGet, "/pay", x402.Protect(http.HandlerFunc(handler.Pay), priceTag))
	r.With(timeoutMiddleware(uploadTimeout)).Post("/store", handler.Store)
	r.Get("/info/{blobId}", handler.BlobInfo)
	r.Get("/get/{blobId}", handler.BlobInfo)
	r.Get("/blob/{blobId}", handler.Blob)
	r.Get("/images", handler.Images)
	r.Get("/images/{name}", handler.ImageFile)
	r.Get("/registry/{address}", handler.RegistryBlobs)
	r.Get("/health", handler.Health)

	adminSecret := cfg.AdminJWTSecret
	if adminSecret == "" {
		adminSecret = "dev-admin-secret-change-me"
		log.Printf("ADMIN_JWT_SECRET not set; using development default")
	}
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(middleware.AdminAuth(adminSecret))
		ar.Get("/transactions", handler.AdminTransactions)
	})

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       uploadTimeout,
		WriteTimeout:      uploadTimeout + time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting storage gateway on %s (price %s, network %s)", addr, cfg.Price, cfg.Network)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// buildLedger selects the ledger backend: Redis when REDIS_ADDR is set,
// process memory otherwise.
func buildLedger(cfg *config.Config) ledger.Ledger {
	if cfg.RedisAddr == "" {
		log.Printf("Using in-memory token ledger")
		return ledger.NewMemoryLedger()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis ping failed: %v", err)
	}
	log.Printf("Using Redis token ledger at %s", cfg.RedisAddr)
	return ledger.NewRedisLedger(client, "eggman:")
}

// selectLogging picks the logging middleware based on LOG_FORMAT.
// Options: "detailed" (default), "compact", "json", "none"
func selectLogging() func(http.Handler) http.Handler {
	switch os.Getenv("LOG_FORMAT") {
	case "compact":
		log.Println("Using compact logging format")
		return middleware.CompactLogging
	case "json":
		log.Println("Using JSON structured logging format")
		return middleware.StructuredLogging
	case "none":
		log.Println("Logging disabled")
		return func(next http.Handler) http.Handler { return next }
	default:
		log.Println("Using detailed logging format")
		return middleware.Logging
	}
}

// timeoutMiddleware bounds a route with a context deadline so client
// disconnects and handler timeouts cancel in-flight remote calls.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// corsMiddleware adds CORS headers to responses.
// Uses reflective CORS for a public API - any origin, no credentials.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+payment.HeaderPayment)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
