package main

import (
	"embed"
	"log"

	"study-song/internal/bootstrap"
	"study-song/internal/config"
)

//go:embed frontend/index.html frontend/app.js frontend/style.css
var appAssets embed.FS

func main() {
	config.LoadEnv(".env")

	app, err := bootstrap.NewWithAssets(appAssets)
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
