package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"whale-copytrader/api"
	"whale-copytrader/config"
	"whale-copytrader/engine"
	"whale-copytrader/handlers"
	"whale-copytrader/middleware"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("COPYTRADER_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Println("[main] === Polymarket Copy-Trade Server ===")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, wallet := initClobClient(ctx, cfg)

	oracle := api.NewBalanceOracle(cfg.Chain.RPCURL, cfg.Chain.RPCFallbackURL, cfg.Chain.USDCAddress)
	walletHex := ""
	if wallet != (common.Address{}) {
		walletHex = wallet.Hex()
	}

	sample := func(ctx context.Context) (float64, error) {
		if walletHex == "" {
			return 0, errors.New("wallet not configured")
		}
		return oracle.Balance(ctx, wallet)
	}

	hub := engine.NewHub()
	metrics := engine.NewMetrics(redisClient())
	policy := engine.NewPolicy(cfg.Engine)
	breaker := engine.NewBreaker(sample, hub,
		cfg.Engine.BalanceThresholdUSD,
		time.Duration(cfg.Engine.BalancePollSec)*time.Second,
		time.Duration(cfg.Engine.RecoveryPollSec)*time.Second,
	)

	eng := engine.New(client, policy, breaker, hub, metrics, walletHex)
	eng.Start(ctx)
	go metrics.FlushLoop(ctx, time.Minute)

	// Set up router
	r := gin.Default()
	h := handlers.NewHandler(cfg, eng, hub)

	r.GET("/ws", h.WebSocket)
	r.GET("/health", h.Health)
	r.GET("/api/engine/status", middleware.TokenAuth(), h.EngineStatus)

	port := os.Getenv("PORT")
	if port == "" {
		port = strconv.Itoa(cfg.Server.Port)
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutMS) * time.Millisecond,
	}

	go func() {
		log.Printf("[main] Listening on ws://localhost:%s/ws", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[main] Shutting down")

	// Closing the hub sends going-away to every observer and unblocks their
	// writer goroutines.
	hub.Close()
	eng.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutMS)*time.Millisecond)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] Shutdown error: %v", err)
	}
}

// initClobClient builds the authenticated exchange client. Missing or bad
// credentials leave the engine in read-only mode rather than failing
// startup.
func initClobClient(ctx context.Context, cfg *config.Config) (api.ClobClientInterface, common.Address) {
	auth, err := api.NewAuth()
	if err != nil {
		log.Printf("[main] WARNING: %v, engine running read-only (no execution)", err)
		return nil, common.Address{}
	}

	client, err := api.NewClobClient(cfg.Clob.BaseURL, auth)
	if err != nil {
		log.Printf("[main] WARNING: CLOB client init failed: %v, engine running read-only", err)
		return nil, auth.GetAddress()
	}

	if proxy := os.Getenv("PROXY_ADDRESS"); proxy != "" {
		client.SetFunder(proxy)
	}
	if sigType := os.Getenv("SIGNATURE_TYPE"); sigType != "" {
		if v, err := strconv.Atoi(sigType); err == nil {
			client.SetSignatureType(v)
		}
	}

	if _, err := client.DeriveAPICreds(ctx); err != nil {
		log.Printf("[main] WARNING: API credential derivation failed: %v, engine running read-only", err)
		return nil, client.FunderAddress()
	}

	log.Printf("[main] CLOB client ready, wallet %s funder %s",
		auth.GetAddress().Hex(), client.FunderAddress().Hex())
	return client, client.FunderAddress()
}

// redisClient connects the optional metrics store. Unset REDIS_URL means
// metrics stay in memory only.
func redisClient() *redis.Client {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[main] Invalid REDIS_URL: %v, metrics store disabled", err)
		return nil
	}
	return redis.NewClient(opts)
}
