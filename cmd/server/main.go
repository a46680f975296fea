package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/doorkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/doorkeeper/internal/server"
	"github.com/dmitrijs2005/doorkeeper/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)
	server.Version = buildinfo.Version

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		os.Exit(1)
	}

}
