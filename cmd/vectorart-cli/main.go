package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"vectorart/internal/adapters/chroma"
	"vectorart/internal/adapters/localstorage"
	"vectorart/internal/config"
	"vectorart/internal/core/domain"
	"vectorart/internal/infra"
	"vectorart/internal/service"
)

func main() {
	filePath := flag.String("file", "", "Source image to turn into vector art")
	dataDir := flag.String("data-dir", "./data", "Base directory for storing run data")
	noDownload := flag.Bool("no-download", false, "Skip downloading the generated artifact")
	flag.Parse()

	if *filePath == "" {
		fmt.Println("Usage: vectorart-cli -file <image> [-data-dir <path>] [-no-download]")
		fmt.Println("\nExample:")
		fmt.Println("  vectorart-cli -file cat.png")
		fmt.Println("  vectorart-cli -file photo.jpg -data-dir /tmp/vectorart")
		os.Exit(1)
	}

	cfg := config.Load()
	logger := infra.NewLogger(cfg.Env)

	file, err := loadSelectedFile(*filePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read source file")
	}

	client := chroma.New(chroma.Config{
		APIBase:      cfg.APIBase,
		ContentBase:  cfg.ContentBase,
		UserID:       cfg.UserID,
		PollInterval: cfg.PollInterval,
		MaxPolls:     cfg.MaxPolls,
		HTTPTimeout:  cfg.HTTPTimeout,
	}, logger)
	store := localstorage.NewLocalStorage(*dataDir)

	pipeline := service.NewPipeline(client, client, client, client, store, logger, func(ev domain.Event) {
		if ev.Attempt > 0 {
			logger.Info().Int("attempt", ev.Attempt).Msg(ev.Message)
			return
		}
		logger.Info().Str("stage", string(ev.Stage)).Msg(ev.Message)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn().Msg("received interrupt signal, cancelling")
		cancel()
	}()

	if err := pipeline.SelectFile(ctx, file); err != nil {
		logger.Fatal().Err(err).Msg("upload failed")
	}

	if _, err := pipeline.Generate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("generation failed")
	}

	if !*noDownload {
		if _, err := pipeline.Download(ctx); err != nil {
			// Not fatal: the result URL is still usable by hand.
			logger.Warn().Err(err).Msg("artifact download failed")
		}
	}

	printSummary(pipeline.Result())
}

// loadSelectedFile reads the source image and resolves its MIME type, first
// from the extension, then by sniffing the bytes when the extension says
// nothing.
func loadSelectedFile(path string) (domain.SelectedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SelectedFile{}, err
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	return domain.SelectedFile{
		Name:  filepath.Base(path),
		MIME:  mimeType,
		Bytes: data,
	}, nil
}

func printSummary(result domain.RunResult) {
	fmt.Println("\n=== Run Summary ===")
	fmt.Printf("Run ID:       %s\n", result.RunID)
	fmt.Printf("Source:       %s\n", result.SourceFile)
	fmt.Printf("Success:      %t\n", result.Success)
	fmt.Printf("Job ID:       %s\n", result.JobID)
	fmt.Printf("Uploaded URL: %s\n", result.UploadedURL)
	fmt.Printf("Result URL:   %s\n", result.ResultURL)
	if result.ArtifactPath != "" {
		fmt.Printf("Artifact:     %s\n", result.ArtifactPath)
	}
	if !result.CompletedAt.IsZero() {
		fmt.Printf("Completed At: %s\n", result.CompletedAt.Format(time.RFC3339))
	}
}
