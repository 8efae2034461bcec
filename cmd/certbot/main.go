package main

import (
	"log"
	"os"
	"time"

	v1 "tg_certbot/api/v1"
	"tg_certbot/internal/acmetool"
	"tg_certbot/internal/auth"
	"tg_certbot/internal/bot"
	"tg_certbot/internal/cache"
	"tg_certbot/internal/config"
	"tg_certbot/internal/db"
	"tg_certbot/internal/dnschallenge"
	"tg_certbot/internal/format"
	"tg_certbot/internal/order"
	"tg_certbot/internal/ws"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. Load configuration (INI file when CONFIG_FILE is set, env otherwise)
	var (
		cfg *config.Config
		err error
	)
	if iniPath := os.Getenv("CONFIG_FILE"); iniPath != "" {
		cfg, err = config.LoadFromINI(iniPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
		os.Exit(1)
	}
	log.Println("✓ Configuration loaded")

	// 2. Initialize MySQL
	if err := db.InitMySQL(cfg.MySQL.DSN); err != nil {
		log.Fatalf("Failed to initialize MySQL: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3. Run migrations when requested
	if cfg.Migrate {
		if err := db.Migrate(db.DB); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
			os.Exit(1)
		}
	}

	// 4. Initialize Redis
	if err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
		os.Exit(1)
	}
	defer cache.Close()

	// 5. Initialize JWT for the admin API
	auth.InitJWT(cfg.JWT.Secret)

	// 6. Initialize the Socket.IO status feed
	if err := ws.InitServer(); err != nil {
		log.Fatalf("Failed to initialize WebSocket server: %v", err)
		os.Exit(1)
	}

	// 7. Build the order core and the bot
	fmtr := format.New(cfg.Acme.ExportRoot)
	acmeClient := acmetool.NewShellClient(acmetool.ShellConfig{
		Path:       cfg.Acme.Path,
		Server:     cfg.Acme.Server,
		ExportRoot: cfg.Acme.ExportRoot,
		Timeout:    time.Duration(cfg.Acme.TimeoutSec) * time.Second,
	})
	resolver := dnschallenge.NewResolver(cfg.DNS.Resolvers, time.Duration(cfg.DNS.TimeoutSec)*time.Second)
	locks := cache.NewOrderLock(cache.Client, time.Duration(cfg.Order.LockTTLSec)*time.Second)

	svc := order.NewService(
		order.NewGormRepository(db.DB),
		acmeClient,
		resolver,
		fmtr,
		locks,
		ws.OrderNotifier{},
		order.Config{
			ExportRoot:   cfg.Acme.ExportRoot,
			DefaultQuota: cfg.Order.DefaultQuota,
			OwnerTgID:    cfg.Order.OwnerTgID,
		},
	)

	tgClient := bot.NewClient(cfg.Telegram.APIBase, cfg.Telegram.BotToken)
	botHandler := bot.NewHandler(svc, fmtr, tgClient)

	// 8. Initialize Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// Mount the Socket.IO endpoint
	r.GET("/socket.io/*any", gin.WrapH(ws.Server))
	r.POST("/socket.io/*any", gin.WrapH(ws.Server))

	// Setup webhook ingress and API v1 routes
	v1.SetupRouter(r, db.DB, cfg, botHandler)

	log.Printf("✓ Server starting on %s", cfg.HTTPAddr)

	// Start server
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
		os.Exit(1)
	}
}
