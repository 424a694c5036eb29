package main

import (
	"context"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"time"

	"OpenMCP-Intent/internal/api"
	"OpenMCP-Intent/internal/corpus"
	"OpenMCP-Intent/sdk/go/intentclient"
)

func main() {
	dir, err := os.MkdirTemp("", "intent-sdk-demo")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := corpus.NewFileStore(dir)
	if err != nil {
		log.Fatal(err)
	}
	svc, err := corpus.NewService(store)
	if err != nil {
		log.Fatal(err)
	}

	srv := httptest.NewServer(api.NewServer(api.Options{Corpus: svc}).Handler())
	defer srv.Close()

	client, err := intentclient.NewClient(srv.URL, srv.Client())
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	prompt := "Send 0.2 ETH, 50 USDC to Tom on Base, swap 100 USDT to ETH on Ethereum, check balance"
	result, err := client.Parse(ctx, prompt)
	if err != nil {
		log.Fatal(err)
	}
	intents, err := result.Intents()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("parsed %d intent(s)\n", result.IntentCount)
	for _, it := range intents {
		fmt.Printf("  %s: %d token(s)\n", it.Intent, len(it.Parameters.Tokens))
	}

	id, err := client.LogPrompt(ctx, prompt)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("logged prompt %s\n", id)
}
