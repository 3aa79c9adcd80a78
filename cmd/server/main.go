// Package main is the application entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"kimuntu-rag-go/internal/cache"
	"kimuntu-rag-go/internal/chunker"
	"kimuntu-rag-go/internal/config"
	"kimuntu-rag-go/internal/fusion"
	"kimuntu-rag-go/internal/handler"
	"kimuntu-rag-go/internal/middleware"
	"kimuntu-rag-go/internal/pipeline"
	"kimuntu-rag-go/internal/ratelimit"
	"kimuntu-rag-go/internal/repository"
	"kimuntu-rag-go/internal/search"
	"kimuntu-rag-go/internal/service"
	"kimuntu-rag-go/pkg/database"
	"kimuntu-rag-go/pkg/embedding"
	"kimuntu-rag-go/pkg/es"
	"kimuntu-rag-go/pkg/kafka"
	"kimuntu-rag-go/pkg/llm"
	"kimuntu-rag-go/pkg/log"
	"kimuntu-rag-go/pkg/storage"
	"kimuntu-rag-go/pkg/tika"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. Initialize configuration
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. Initialize the logger
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialized")

	// 3. Initialize datastores and clients
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("failed to initialize elasticsearch: %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. Initialize repositories
	docRepo := repository.NewDocumentRepository(database.DB)
	statusRepo := repository.NewIngestStatusRepository(database.RDB)

	// 5. Initialize clients and core components
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)

	splitter := chunker.New(chunker.Options{
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
	})
	fusionEngine := fusion.NewEngine(fusion.Config{
		Method:         fusion.Method(cfg.Retrieval.FusionMethod),
		RRFK:           cfg.Retrieval.RRFK,
		LexicalWeight:  cfg.Retrieval.LexicalWeight,
		VectorWeight:   cfg.Retrieval.VectorWeight,
		ScoreThreshold: cfg.Retrieval.ScoreThreshold,
	})
	limiter := ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	queryCache := cache.New(cfg.Cache.Capacity, time.Duration(cfg.Cache.TTLSeconds)*time.Second)

	lexicalSearcher := search.NewLexicalSearcher(es.ESClient, cfg.Elasticsearch.IndexName)
	vectorSearcher := search.NewVectorSearcher(es.ESClient, cfg.Elasticsearch.IndexName)

	// 6. Initialize services (dependency injection)
	retrievalService := service.NewRetrievalService(
		embeddingClient, lexicalSearcher, vectorSearcher,
		fusionEngine, limiter, queryCache,
		cfg.Retrieval, cfg.Guard.SnippetMaxLen,
	)
	answerService := service.NewAnswerService(retrievalService, llmClient, cfg.LLM)
	documentService := service.NewDocumentService(docRepo, statusRepo, cfg.MinIO, cfg.Elasticsearch)

	// 7. Initialize the ingestion processor
	processor := pipeline.NewProcessor(
		tikaClient,
		embeddingClient,
		splitter,
		cfg.Elasticsearch,
		cfg.MinIO,
		cfg.Embedding,
		docRepo,
		statusRepo,
	)

	// 8. Start the background Kafka consumer
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 8.1 Import seed documents from the initfile directory (idempotent;
	// re-uploading the same content replaces its chunks)
	go initSeedDocuments("initfile", documentService)

	// 9. Set Gin mode and build the router
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 10. Register routes
	uploadHandler := handler.NewUploadHandler(documentService)
	searchHandler := handler.NewSearchHandler(retrievalService)
	documentHandler := handler.NewDocumentHandler(documentService)
	answerHandler := handler.NewAnswerHandler(answerService)

	// Persisted upload/search contract.
	r.POST("/upload", uploadHandler.Upload)
	r.GET("/search", searchHandler.Search)

	apiV1 := r.Group("/api/v1")
	{
		documents := apiV1.Group("/documents")
		{
			documents.GET("", documentHandler.List)
			documents.GET("/:id/status", documentHandler.Status)
			documents.DELETE("/:id", documentHandler.Delete)
		}

		apiV1.POST("/answer", answerHandler.Answer)
		apiV1.GET("/answer/stream", answerHandler.Stream)
	}

	// Start the HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received, closing server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}

	// The Kafka consumer loop ends naturally when the process exits.
	log.Info("server stopped gracefully")
}

// seedTenantID owns documents imported at startup.
const seedTenantID = "default"

// initSeedDocuments walks a directory and ingests every file through the
// standard upload flow. Content-addressed document IDs make this idempotent.
func initSeedDocuments(dir string, docService service.DocumentService) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		log.Infof("initSeedDocuments: directory '%s' missing or unusable, skipping seed import", dir)
		return
	}

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			log.Warnf("initSeedDocuments: failed to open file: %s, err=%v", path, err)
			return nil
		}
		defer f.Close()

		doc, err := docService.Upload(context.Background(), seedTenantID, "system", info.Name(), f)
		if err != nil {
			log.Warnf("initSeedDocuments: failed to import: %s, err=%v", path, err)
			return nil
		}
		log.Infof("initSeedDocuments: imported and queued for indexing: %s (documentID=%s)", info.Name(), doc.ID)
		return nil
	})
	if walkErr != nil {
		log.Warnf("initSeedDocuments: directory walk failed: %v", walkErr)
	}
}
