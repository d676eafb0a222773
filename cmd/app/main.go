package main

import (
	"log"

	"study-song/internal/bootstrap"
	"study-song/internal/config"
)

func main() {
	config.LoadEnv(".env")

	app, err := bootstrap.New()
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
