// Command llmtest runs one extraction through the configured LLM chain so the
// provider wiring can be checked without starting the API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/therapymatch-ai/cmd/mainconfig"
	"github.com/wolfman30/therapymatch-ai/internal/app/bootstrap"
	appconfig "github.com/wolfman30/therapymatch-ai/internal/config"
	"github.com/wolfman30/therapymatch-ai/internal/conversation"
	"github.com/wolfman30/therapymatch-ai/pkg/logging"
)

const sampleMessage = "I've been really anxious lately. Weekday evenings work best and I have Aetna."

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	clients, err := bootstrap.BuildLLMClients(ctx, cfg, &awsCfg, nil, logger)
	if err != nil {
		log.Fatalf("build llm clients: %v", err)
	}
	if clients.Text == nil {
		fmt.Println("No LLM provider configured (set GEMINI_API_KEY or BEDROCK_MODEL_ID); showing rule-based extraction.")
	}

	text := sampleMessage
	if len(os.Args) > 1 {
		text = strings.Join(os.Args[1:], " ")
	}

	start := time.Now()
	extracted := conversation.NewLLMExtractor(clients.Text, nil, logger).Extract(ctx, conversation.ExtractionInput{UserText: text})
	out, _ := json.MarshalIndent(extracted, "", "  ")

	fmt.Printf("message:   %s\n", text)
	fmt.Printf("elapsed:   %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("extracted: %s\n", out)
}
