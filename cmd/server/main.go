package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/dagalow/coach-assistant/internal/config"
	"github.com/dagalow/coach-assistant/internal/db"
	"github.com/dagalow/coach-assistant/internal/httpapi"
	"github.com/dagalow/coach-assistant/internal/httpapi/handlers"
	"github.com/dagalow/coach-assistant/internal/store/rabbitmq"
	"github.com/dagalow/coach-assistant/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rds.Ping(ctx); err != nil {
			log.Printf("[Server] redis unreachable, ephemeral session tier disabled: %v", err)
			_ = rds.Close()
			rds = nil
		}
		cancel()
	}

	// The async send path needs the broker; everything else works without
	// it, so a missing broker downgrades rather than aborts.
	var rabbit *rabbitmq.Publisher
	if p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		log.Printf("[Server] rabbitmq unavailable, async chat disabled: %v", err)
	} else {
		rabbit = p
		defer rabbit.Close()
	}

	h := handlers.NewHandler(gdb, cfg, rds, rabbit)
	r := httpapi.NewRouter(h)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	log.Printf("[Server] listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
