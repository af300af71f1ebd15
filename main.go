package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"shellduel/database"    // PostgreSQL and Redis initialization
	"shellduel/duel"        // room hub, match engine, websocket plumbing
	"shellduel/handlers"    // HTTP endpoints
	"shellduel/middlewares" // HTTP auth middleware
	"shellduel/utils"       // logger setup and cron jobs

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
)

func main() {
	logger, err := utils.InitLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	config, err := database.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("failed to load config file", zap.Error(err))
	}

	// PostgreSQL and Redis come up in parallel.
	var db *gorm.DB
	var rdb *redis.Client
	done := make(chan bool)

	go func() {
		db, err = database.InitPostgreSQL(config, logger)
		if err != nil {
			logger.Fatal("failed to initialize PostgreSQL", zap.Error(err))
		}
		done <- true
	}()

	go func() {
		rdb, err = database.InitRedis(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		done <- true
	}()

	<-done
	<-done

	tokens := database.NewTokenStore(rdb, logger)
	results := database.NewResultStore(db, logger)
	scores := database.NewScoreKeeper(db, logger)
	emitter := duel.NewResultEmitter(results, scores, logger)
	gracePeriod := time.Duration(config.GraceSeconds) * time.Second
	hub := duel.NewHub(tokens, emitter, gracePeriod, logger)

	utils.CronCleaner(hub, results, logger)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	allowOrigins := config.AllowOrigins
	if len(allowOrigins) == 0 {
		allowOrigins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.POST("/auth/guest", handlers.GuestLogin(db, logger))
	router.GET("/rooms", handlers.ListRooms(hub))
	router.GET("/me", middlewares.AuthRequired(), handlers.MyStats(db, logger))
	router.GET("/ws", func(c *gin.Context) {
		duel.HandleConnections(c, hub, upgrader, logger)
	})

	logger.Info("server starting", zap.String("addr", config.ServerAddr))
	if err := router.Run(config.ServerAddr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
