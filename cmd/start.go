/*
Copyright © 2025 neproger
*/
package cmd

import (
	"context"
	"log"
	"net/http"

	"github.com/neproger/docbot/config"
	"github.com/neproger/docbot/database"
	"github.com/neproger/docbot/handler"
	"github.com/neproger/docbot/repository"
	"github.com/neproger/docbot/service"
	"github.com/neproger/docbot/types"
	"github.com/spf13/cobra"
)

// startServerCmd represents the start command
var startServerCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the document chat server",
	Long:  `Starts the server that ingests documents and answers chat requests`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		ctx := context.Background()

		weaviateDb, err := database.NewWeaviateStore(cfg.WeaviateStoreConfig)
		if err != nil {
			log.Fatalf("Failed to connect to Weaviate database: %v", err)
		}
		// Schema problems must stop the process before it serves anything
		if err := weaviateDb.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure vector store schema: %v", err)
		}

		mongoClient, err := database.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		dbName := cfg.MongoDatabase
		if dbName == "" {
			dbName = "docbot"
		}
		messageRepo := repository.NewMessageRepo(mongoClient.Database(dbName))
		if messageRepo == nil {
			log.Fatal("Failed to initialize message repository")
		}

		var aiService service.AIService
		if cfg.AIBackend == "gemini" {
			aiService, err = service.NewGeminiService(cfg.GeminiKeys(), cfg.Model)
			if err != nil {
				log.Fatalf("Failed to create Gemini service: %v", err)
			}
		} else {
			aiService = service.NewOpenAIService(cfg.AIEndpoint, cfg.OpenAIAPIKey, cfg.Model)
		}

		// Initialize services
		pdfService := service.NewPDFService(types.DocumentServiceConfig{})
		ingestService := service.NewIngestService(weaviateDb)
		retrievalService := service.NewRetrievalService(weaviateDb)
		fileService := service.NewFileService(cfg.UploadDir, ingestService, pdfService)

		registry := service.NewToolRegistry()
		if err := service.RegisterRAGTools(registry, retrievalService); err != nil {
			log.Fatalf("Failed to register document tools: %v", err)
		}
		if cfg.WebSearch.APIKey != "" && cfg.WebSearch.EngineID != "" {
			webSearch := service.NewWebSearchService(cfg.WebSearch.APIKey, cfg.WebSearch.EngineID)
			if err := webSearch.RegisterSearchTool(registry); err != nil {
				log.Fatalf("Failed to register web search tool: %v", err)
			}
		}

		agentService := service.NewAgentService(aiService, registry, messageRepo, cfg.Agent)
		wsService := service.NewWebSocketService(agentService)

		// Initialize handlers
		corsHandler := handler.NewCorsHandler()
		chatHandler := handler.NewChatHandler(agentService)
		searchHandler := handler.NewSearchHandler(retrievalService)
		documentHandler := handler.NewDocumentHandler(cfg.UploadDir, retrievalService)
		uploadHandler := handler.NewUploadHandler(fileService)

		// Setup routes
		mux := http.NewServeMux()
		mux.Handle("/api/v1/chat", chatHandler.HandleChat())
		mux.Handle("/api/v1/documents/search", searchHandler.HandleSearch())
		mux.Handle("/api/v1/documents", documentHandler.HandleList())
		mux.Handle("/api/v1/documents/file", documentHandler.ServeDocument())
		mux.Handle("/api/v1/upload", uploadHandler.UploadDocumentHandler())
		mux.HandleFunc("/ws/chat", wsService.HandleChat)

		log.Printf("Starting server on port %s...\n", cfg.Port)
		if err := http.ListenAndServe(":"+cfg.Port, corsHandler.Wrap(mux)); err != nil {
			log.Fatal("Server error:", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(startServerCmd)
	startServerCmd.Flags().StringP("config", "c", "config/config.yaml", "config file")
}
