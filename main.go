package main

import (
	"log"
	"os"
	"time"

	"bookingchat/internal/api"
	"bookingchat/internal/assistant"
	"bookingchat/internal/auth"
	"bookingchat/internal/booking"
	"bookingchat/internal/chat"
	"bookingchat/internal/config"
	"bookingchat/internal/redis"
	"bookingchat/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("BOOKINGCHAT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("BOOKINGCHAT_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("create redis client: %v", err)
	}
	defer rdb.Close()

	// Create necessary tables: users, user_tokens
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	authService := auth.NewService(db, rdb, 24*time.Hour)

	assistantClient, err := assistant.New(cfg.Assistant)
	if err != nil {
		log.Fatalf("init assistant client: %v", err)
	}
	gateway := booking.NewGateway(cfg.Calendar)
	chatService := chat.NewService(rdb, assistantClient, gateway, chat.PollPolicy{
		Interval: time.Duration(cfg.Assistant.PollIntervalSeconds) * time.Second,
		MaxWait:  time.Duration(cfg.Assistant.MaxWaitSeconds) * time.Second,
	})

	handlers := api.NewHandler(chatService, gateway, authService)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
