// cmd/server/main.go
package main

import (
	"fmt"

	"github.com/Annany2002/nebula-apibuilder/api"    // Import router setup
	"github.com/Annany2002/nebula-apibuilder/config" // Import config loading
	"github.com/Annany2002/nebula-apibuilder/internal/logger"
	"github.com/Annany2002/nebula-apibuilder/internal/storage" // Import DB connection func
)

var (
	customLog = logger.NewLogger()
)

func main() {
	customLog.Println("Starting Nebula API builder server...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		customLog.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize Metadata Database Connection (endpoint registry + database directory)
	metaDB, err := storage.ConnectMetadataDB(cfg)
	if err != nil {
		customLog.Fatalf("Failed to initialize metadata database: %v", err)
	}
	defer func() {
		customLog.Println("Closing metadata database connection...")
		if err := metaDB.Close(); err != nil {
			customLog.Printf("Error closing metadata database: %v", err)
		}
	}()

	// 3. Setup Router (passing dependencies)
	router := api.SetupRouter(metaDB, cfg)

	// 4. Start Server
	customLog.Printf("Server listening on port %s, dynamic endpoints under /api", cfg.ServerPort)
	if err := router.Run(fmt.Sprintf(":%s", cfg.ServerPort)); err != nil {
		customLog.Fatalf("Failed to start server: %v", err)
	}
}
