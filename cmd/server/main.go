package main

import (
	"context"
	"log"

	"paddlearena/server/internal/app"
)

func main() {
	if err := app.Run(context.Background(), app.ConfigFromEnv()); err != nil {
		log.Fatalf("%v", err)
	}
}
