package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"

	"codeberg.org/vestilook/server/internal/client"
	"codeberg.org/vestilook/server/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/watch-stream <generation_id>")
		fmt.Println("Reads VESTILOOK_API_ENDPOINT and VESTILOOK_ACCESS_TOKEN from the environment")
		os.Exit(1)
	}

	jobID := os.Args[1]

	e, err := tui.LoadEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	api := client.New(e.Endpoint, e.AccessToken)
	stream := tui.NewWSClient(api.StreamURL, e.AccessToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Printf("Connecting to %s", api.StreamURL(jobID))

	results, err := stream.Open(ctx, jobID)
	if err != nil {
		log.Fatalf("Failed to open stream: %v", err)
	}

	for res := range results {
		if res.Err != nil {
			log.Printf("❌ %v", res.Err)
			continue
		}

		out, err := json.MarshalIndent(res.View, "", "  ")
		if err != nil {
			log.Printf("Failed to encode view: %v", err)
			continue
		}

		fmt.Println(string(out))
	}

	log.Println("Stream closed")
}
