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

	"github.com/joho/godotenv"

	"tiemao/storefront/internal/cache"
	"tiemao/storefront/internal/cart"
	"tiemao/storefront/internal/config"
	"tiemao/storefront/internal/httpapi"
	"tiemao/storefront/internal/service"
	"tiemao/storefront/internal/store"
	"tiemao/storefront/internal/store/memory"
	pgstore "tiemao/storefront/internal/store/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	// The cart slot and its broadcast channel live in Redis when available;
	// otherwise both degrade to process-local memory.
	memoryCarts := cart.NewMemoryStorage()
	cartStorage := cart.Storage(memoryCarts)
	cartEvents := cart.Broadcaster(memoryCarts)
	variantCache := cache.VariantCache(cache.NoopVariantCache{})

	if cfg.RedisAddr != "" {
		redisCarts := cart.NewRedisStorage(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCarts.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), carts stay in memory", err)
		} else {
			cartStorage = redisCarts
			cartEvents = redisCarts
			closers = append(closers, redisCarts.Close)
			log.Println("carts: redis")
		}

		redisCache := cache.NewRedisVariantCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop variant cache", err)
		} else {
			variantCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("variant cache: redis")
		}
	} else {
		log.Println("carts: in-memory, variant cache: noop")
	}

	svc := service.New(repo, variantCache, time.Duration(cfg.VariantCacheTTLSeconds)*time.Second,
		cartStorage, cartEvents, cfg.ShippingFlatFee)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("storefront backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
