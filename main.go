package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime"
	"time"

	"geoagent/config"
	"geoagent/database"
	"geoagent/exif"
	"geoagent/imageprocessor"
	"geoagent/inference"
	"geoagent/ingest"
	"geoagent/logging"
	"geoagent/server"
	"geoagent/signalhandler"
	"geoagent/utils"
	"geoagent/validation"
)

func main() {
	// Set the optimal number of CPUs to use
	runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

	// Parse command line arguments into a map
	args := utils.ParseArguments()

	// Get the command (serve, ingest or locate)
	command, hasCommand := args["command"]

	// Load environment-driven configuration
	cfg := config.Load()

	// Setup debug logging if enabled
	if _, ok := args["debug"]; ok {
		logPath := "geoagent.log"
		if customLogPath, ok := args["logfile"]; ok && customLogPath != "" {
			logPath = customLogPath
		}
		if err := logging.SetupLogger(logPath); err != nil {
			fmt.Printf("Warning: Failed to setup logging: %v\n", err)
		} else {
			fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
		}
		defer logging.CloseLogger()
	}

	// Check if required arguments are missing
	showUsage := !hasCommand

	if hasCommand && command == "ingest" && args["folder"] == "" {
		showUsage = true
	}

	if hasCommand && command == "locate" && args["image"] == "" {
		showUsage = true
	}

	// Show usage if required arguments are missing
	if showUsage {
		utils.PrintUsage()
		os.Exit(1)
	}

	switch command {
	case "serve":
		handleServeCommand(args, cfg)
	case "ingest":
		handleIngestCommand(args, cfg)
	case "locate":
		handleLocateCommand(args, cfg)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		utils.PrintUsage()
		os.Exit(1)
	}
}

// openStore initializes the location store with retry logic.
func openStore(cfg config.Config) *database.Store {
	var store *database.Store
	var err error
	for i := 0; i < cfg.MaxRetries; i++ {
		store, err = database.Open(cfg.DBPath, cfg.VectorIndexPath, cfg.VectorDimension)
		if err == nil {
			break
		}

		if i < cfg.MaxRetries-1 {
			log.Printf("Error initializing store (attempt %d/%d): %v - retrying...",
				i+1, cfg.MaxRetries, err)
			time.Sleep(time.Second * time.Duration(i+1))
		} else {
			log.Fatalf("Error initializing store after %d attempts: %v", cfg.MaxRetries, err)
		}
	}
	return store
}

func handleServeCommand(args map[string]string, cfg config.Config) {
	if host, ok := args["host"]; ok && host != "" {
		cfg.Host = host
	}
	if port, ok := args["port"]; ok && port != "" {
		cfg.Port = port
	}

	store := openStore(cfg)
	defer store.Close()

	meta, err := exif.NewExtractor()
	if err != nil {
		log.Fatalf("Error starting metadata extractor: %v", err)
	}
	defer meta.Close()

	engine := inference.NewEngine(cfg)
	validator := validation.NewValidator(cfg.ConfidenceThreshold)

	router := server.NewRouter(cfg, meta, imageprocessor.Analyzer{}, engine, validator, store)
	mux := http.NewServeMux()
	router.Register(mux)

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	ctx, stop := signalhandler.ShutdownContext()
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		fmt.Printf("Geolocation API listening on %s\n", addr)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	case <-ctx.Done():
		fmt.Println("\nShutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}
}

func handleIngestCommand(args map[string]string, cfg config.Config) {
	folderPath := args["folder"]

	// Verify folder path exists and is accessible
	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Fatalf("Folder path does not exist: %s", folderPath)
		} else {
			log.Fatalf("Cannot access folder path: %s (%v)", folderPath, err)
		}
	}
	if !folderInfo.IsDir() {
		log.Fatalf("Path is not a directory: %s", folderPath)
	}

	store := openStore(cfg)
	defer store.Close()

	meta, err := exif.NewExtractor()
	if err != nil {
		log.Fatalf("Error starting metadata extractor: %v", err)
	}
	defer meta.Close()

	ingestor := ingest.New(store, meta, imageprocessor.Analyzer{})

	ctx, stop := signalhandler.ShutdownContext()
	defer stop()

	startTime := time.Now()

	fmt.Printf("Ingesting geotagged images from %s...\n", folderPath)
	stats, err := ingestor.Scan(ctx, ingest.Options{
		FolderPath: folderPath,
		MaxWorkers: signalhandler.GetOptimalProcs(),
	})
	if err != nil && err != context.Canceled {
		log.Fatalf("Error ingesting folder: %v", err)
	}

	duration := time.Since(startTime)
	fmt.Printf("\nIngest completed in %v\n", duration)
	fmt.Printf("- Image files found: %d\n", stats.TotalFiles)
	fmt.Printf("- Locations stored:  %d\n", stats.Stored)
	fmt.Printf("- Skipped (no GPS):  %d\n", stats.Skipped)
	fmt.Printf("- Errors:            %d\n", stats.Errors)

	watch := cfg.IngestWatch
	if _, ok := args["watch"]; ok {
		watch = true
	}
	if watch && ctx.Err() == nil {
		if err := ingestor.Watch(ctx, folderPath); err != nil && err != context.Canceled {
			log.Fatalf("Watcher error: %v", err)
		}
	}
}

func handleLocateCommand(args map[string]string, cfg config.Config) {
	imagePath := args["image"]

	if _, err := os.Stat(imagePath); os.IsNotExist(err) {
		log.Fatalf("Image does not exist: %s", imagePath)
	}

	meta, err := exif.NewExtractor()
	if err != nil {
		log.Fatalf("Error starting metadata extractor: %v", err)
	}
	defer meta.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	coord, err := meta.ExtractCoordinate(imagePath)
	if err != nil {
		logging.DebugLog("metadata extraction failed for %s: %v", imagePath, err)
		coord = nil
	}

	features, err := imageprocessor.AnalyzeImage(imagePath)
	if err != nil {
		log.Fatalf("Error processing image: %v", err)
	}

	engine := inference.NewEngine(cfg)
	validator := validation.NewValidator(cfg.ConfidenceThreshold)

	prediction := engine.Infer(ctx, features, coord, args["context"])
	validated := validator.Validate(prediction, &features)

	out, err := json.MarshalIndent(validated, "", "  ")
	if err != nil {
		log.Fatalf("Error encoding result: %v", err)
	}
	fmt.Println(string(out))
}
