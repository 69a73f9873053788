package main

import (
	"context"
	"log"

	"compass/internal/app/bootstrap"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (postgres repo, ordering module, event bus).
// 3) Run the outbox relay loop.
func main() {
	log.Println("compass worker starting")
	app, err := bootstrap.BuildWorker()
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(context.Background()); err != nil {
		log.Fatalf("compass worker stopped with error: %v", err)
	}
}
