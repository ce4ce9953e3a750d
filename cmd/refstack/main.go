// Command refstack serves the RefStack web application.
package main

import (
	"context"
	"log"

	"github.com/dalemusser/waffle/app"
	"github.com/refstack/refstack/internal/app/bootstrap"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		log.Fatalf("refstack: %v", err)
	}
}
