/*
Copyright © 2025 neproger
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/neproger/docbot/config"
	"github.com/neproger/docbot/database"
	"github.com/neproger/docbot/service"
	"github.com/neproger/docbot/types"
	"github.com/spf13/cobra"
)

// uploadDocumentCmd represents the upload-document command
var uploadDocumentCmd = &cobra.Command{
	Use:   "upload-document",
	Short: "Ingest a document file into the vector store",
	Long: `Extracts text from a local file (.pdf per page, .txt/.md as one body)
and writes its metadata and content records into the vector store. Re-running
the command for the same file converges on the same record ids, so a partial
ingestion can be re-driven safely.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		filePath, _ := cmd.Flags().GetString("file")
		title, _ := cmd.Flags().GetString("title")
		if filePath == "" {
			log.Fatal("--file is required")
		}

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}

		ctx := context.Background()
		weaviateDb, err := database.NewWeaviateStore(cfg.WeaviateStoreConfig)
		if err != nil {
			log.Fatalf("Failed to connect to Weaviate database: %v", err)
		}
		if err := weaviateDb.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to ensure vector store schema: %v", err)
		}

		pdfService := service.NewPDFService(types.DocumentServiceConfig{})
		ingestService := service.NewIngestService(weaviateDb)
		fileService := service.NewFileService(cfg.UploadDir, ingestService, pdfService)

		result, err := fileService.IngestFile(ctx, filePath, title)
		if err != nil {
			var ingErr *types.IngestionError
			if errors.As(err, &ingErr) {
				for page, pageErr := range ingErr.PageErrors {
					log.Printf("page %d failed: %v", page, pageErr)
				}
				log.Fatalf("Partial ingestion: %d record(s) written, re-run to retry the rest", len(ingErr.ContentIDs))
			}
			log.Fatalf("Failed to ingest document: %v", err)
		}
		fmt.Printf("Ingested %s: metadata record %s, %d content record(s)\n",
			filePath, result.MetaID, len(result.ContentIDs))
	},
}

func init() {
	rootCmd.AddCommand(uploadDocumentCmd)

	uploadDocumentCmd.Flags().StringP("file", "f", "", "Path to the file to ingest")
	uploadDocumentCmd.Flags().StringP("title", "t", "", "Display title (defaults to the file name)")
	uploadDocumentCmd.Flags().StringP("config", "c", "config/config.yaml", "config file")
}
