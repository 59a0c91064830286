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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/surfsense-core/knowledge-core/auth"
	"github.com/surfsense-core/knowledge-core/config"
	"github.com/surfsense-core/knowledge-core/handlers"
	"github.com/surfsense-core/knowledge-core/internal/agent/tools/linear"
	"github.com/surfsense-core/knowledge-core/internal/connectors"
	"github.com/surfsense-core/knowledge-core/internal/connectors/gdrive"
	"github.com/surfsense-core/knowledge-core/internal/connectors/youtube"
	"github.com/surfsense-core/knowledge-core/internal/embed"
	"github.com/surfsense-core/knowledge-core/internal/ingest"
	"github.com/surfsense-core/knowledge-core/internal/jobs"
	"github.com/surfsense-core/knowledge-core/internal/llm"
	"github.com/surfsense-core/knowledge-core/internal/memory"
	"github.com/surfsense-core/knowledge-core/internal/reports"
	"github.com/surfsense-core/knowledge-core/internal/retrieval"
	"github.com/surfsense-core/knowledge-core/internal/store"
	"github.com/surfsense-core/knowledge-core/internal/tasklog"
	"github.com/surfsense-core/knowledge-core/internal/websearch"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := initDB(cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := db.AutoMigrate(
		&store.SearchSpace{},
		&store.Document{},
		&store.Chunk{},
		&store.SearchSourceConnector{},
		&store.ChatThread{},
		&store.ChatMessage{},
		&store.Report{},
		&store.Podcast{},
		&store.UserMemory{},
		&store.TaskLogEntry{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatal("Failed to create pgx pool:", err)
	}
	defer pool.Close()

	repo := store.NewRepository(db, pool)
	logs := tasklog.New(repo)

	cipher, err := connectors.NewFieldCipher([]byte(cfg.Secret.EncryptionKey))
	if err != nil {
		log.Fatal("Failed to init connector field cipher:", err)
	}

	router := buildLLMRouter(cfg)

	embedder := embed.NewHTTPEmbedder(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.APIKey)
	chunker := embed.NewTokenChunker(800, 80, 1500)
	pipeline := ingest.NewPipeline(repo, chunker, embedder, router, logs)
	directIngestor := ingest.NewDirectIngestor(pipeline)

	retrievalEngine := retrieval.NewEngine(repo, embedder, buildWebProviders())
	memStore := memory.NewStore(repo, embedder)
	reportGen := reports.NewGenerator(router, "report")

	redisClient := connectRedis(ctx, cfg)

	var podcastRunner *jobs.PodcastRunner
	audioStore, err := jobs.NewAudioStore(
		cfg.ObjectStorage.Endpoint,
		cfg.ObjectStorage.AccessKey,
		cfg.ObjectStorage.SecretKey,
		cfg.ObjectStorage.Bucket,
		cfg.ObjectStorage.Region,
		cfg.ObjectStorage.UseSSL,
	)
	if err != nil {
		log.Printf("Warning: audio store init failed, podcast generation will be disabled: %v", err)
	} else if redisClient != nil {
		scriptSynth := jobs.NewScriptSynthesizer(router, "report")
		podcastRunner = jobs.NewPodcastRunner(repo, redisClient, audioStore, scriptSynth, 2)
	} else {
		log.Println("Podcast generation disabled (no Redis connection)")
	}

	registry := connectors.NewRegistry(repo, logs, pipeline, cipher)
	connectors.RegisterDefaultFactories(registry)
	registry.Register(store.ConnectorTypeGoogleDrive, func(cfg map[string]any) (connectors.SourceCapability, error) {
		return gdrive.NewConnector(cfg, map[string]gdrive.KnownFile{})
	})

	var linearClient linear.Client
	if apiKey := os.Getenv("LINEAR_API_KEY"); apiKey != "" {
		linearClient = linear.NewHTTPClient(apiKey, &http.Client{Timeout: 20 * time.Second})
	}

	// YouTube's single-URL ingestion has no registry factory; it needs a
	// TranscriptFetcher this deployment hasn't wired yet, so the endpoint
	// stays configured but inert until one is supplied.
	var ytConnector *youtube.Connector

	httpClient := &http.Client{Timeout: 30 * time.Second}

	chatHandlers := handlers.NewChatHandlers(repo, router, "chat", retrievalEngine, nil, memStore, reportGen, podcastRunner, linearClient, httpClient)
	reportHandlers := handlers.NewReportHandlers(repo, reportGen)
	podcastHandlers := handlers.NewPodcastHandlers(repo, podcastRunner, audioStore)
	connectorHandlers := handlers.NewConnectorHandlers(registry)
	ingestHandlers := handlers.NewIngestHandlers(directIngestor, ytConnector, repo)

	ginEngine := setupRouter(cfg, chatHandlers, reportHandlers, podcastHandlers, connectorHandlers, ingestHandlers)

	srv := &http.Server{
		Addr:    cfg.GetServerAddress(),
		Handler: ginEngine,
	}

	go func() {
		log.Printf("knowledge-core server starting on %s", cfg.GetServerAddress())
		log.Printf("Environment: %s", os.Getenv("ENVIRONMENT"))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	log.Println("Server exited")
}

// buildLLMRouter wires the chat/summarizer/report slots configured in
// LLMConfig into a single Router, the same way the teacher's RouterService
// was built from one RouterConfig, generalized to several named slots.
func buildLLMRouter(cfg *config.Config) *llm.Router {
	slots := make(map[string]llm.SlotConfig, len(cfg.LLM.Slots))
	for name, s := range cfg.LLM.Slots {
		slots[name] = llm.SlotConfig{
			BaseURL:    s.BaseURL,
			Model:      s.Model,
			APIKey:     s.APIKey,
			Timeout:    time.Duration(s.Timeout) * time.Second,
			MaxRetries: s.MaxRetries,
		}
	}
	return llm.NewRouter(slots)
}

func buildWebProviders() []retrieval.WebProvider {
	var providers []retrieval.WebProvider
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		providers = append(providers, websearch.NewTavilyProvider(v))
	}
	if v := os.Getenv("LINKUP_API_KEY"); v != "" {
		providers = append(providers, websearch.NewLinkupProvider(v))
	}
	if v := os.Getenv("SEARXNG_BASE_URL"); v != "" {
		providers = append(providers, websearch.NewSearxNGProvider(v))
	}
	if v := os.Getenv("BAIDU_API_KEY"); v != "" {
		providers = append(providers, websearch.NewBaiduProvider(v))
	}
	return providers
}

func connectRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.Redis.Host == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("Warning: Redis connection failed: %v", err)
		return nil
	}
	return client
}

func initDB(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func setupRouter(cfg *config.Config, chatHandlers *handlers.ChatHandlers, reportHandlers *handlers.ReportHandlers, podcastHandlers *handlers.PodcastHandlers, connectorHandlers *handlers.ConnectorHandlers, ingestHandlers *handlers.IngestHandlers) *gin.Engine {
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:3001", "http://localhost:5173"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "knowledge-core",
		})
	})

	v1 := router.Group("/api/v1")

	jwtValidator := auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.AllowedIssuers)
	v1.Use(authMiddleware(jwtValidator))

	spaces := v1.Group("/search-spaces/:search_space_id")
	{
		spaces.POST("/chat/turn", chatHandlers.PostTurn)
		spaces.POST("/chat/turn/resume", chatHandlers.PostResume)
		spaces.POST("/reports", reportHandlers.PostGenerate)
		spaces.POST("/podcasts", podcastHandlers.PostEnqueue)
		spaces.GET("/connectors", connectorHandlers.ListConnectors)
		spaces.POST("/ingest/url", ingestHandlers.PostCrawlURL)
		spaces.POST("/ingest/file", ingestHandlers.PostFile)
		spaces.POST("/ingest/extension", ingestHandlers.PostExtensionCapture)
		spaces.POST("/ingest/youtube", ingestHandlers.PostYouTube)
	}

	v1.POST("/reports/:report_group_id/revise", reportHandlers.PostRevise)
	v1.GET("/reports/:report_group_id", reportHandlers.GetLatest)
	v1.GET("/podcasts/:podcast_id", podcastHandlers.GetStatus)
	v1.POST("/connectors/:connector_id/run", connectorHandlers.RunConnector)

	return router
}

// authMiddleware validates JWT tokens using RSA signature verification.
func authMiddleware(validator *auth.JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(authHeader)
		if err != nil {
			log.Printf("Token validation failed: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		userID, tenantID := validator.ExtractUserContext(claims)
		c.Set("user_id", userID)
		c.Set("tenant_id", tenantID)
		c.Set("user_email", claims.Email)
		c.Set("user_name", claims.Name)
		c.Set("username", claims.PreferredUsername)

		c.Next()
	}
}
