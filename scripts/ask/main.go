// ask runs one question through the full pipeline against the configured
// SQL Server and prints the response as JSON.
//
// Usage: go run ./scripts/ask [-static] [-history "q1;q2"] "<question>"
//
// Configuration is read the same way as the server: config.yaml in the
// working directory, with environment variable overrides (MSSQL_PASSWORD,
// LLM_API_KEY, ...).
//
// Flags:
//
//	-static    Describe the built-in schema to the model instead of introspecting
//	-history   Semicolon separated earlier questions used as conversation context
//	-config    Path to the config file (default: config.yaml)
//	-timeout   Overall timeout (default: 2m)
//	-verbose   Log pipeline stages to stderr
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/app"
	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/config"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
)

func main() {
	static := flag.Bool("static", false, "Use the built-in schema instead of live introspection")
	history := flag.String("history", "", "Semicolon separated earlier questions")
	configPath := flag.String("config", "config.yaml", "Path to the config file")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	verbose := flag.Bool("verbose", false, "Log pipeline stages to stderr")
	flag.Parse()

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [-static] [-history \"q1;q2\"] \"<question>\"\n", os.Args[0])
		os.Exit(1)
	}

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if *verbose {
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, _ := logConfig.Build()
	defer logger.Sync()

	cfg, err := config.LoadFile(*configPath, "cli")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	// One-shot runs never write to the audit database.
	cfg.Audit.Persist = false

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := app.Build(ctx, cfg, app.Options{}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	resp, err := a.Pipeline.Ask(ctx, models.AskRequest{
		Question:               question,
		ConversationHistory:    parseHistory(*history),
		UseSchemaIntrospection: !*static,
	})
	if resp == nil {
		resp = &models.AskResponse{Question: question, Error: apperrors.PublicMessage(err)}
	}

	out, encErr := json.MarshalIndent(resp, "", "  ")
	if encErr != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode response: %v\n", encErr)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if err != nil {
		if *verbose {
			fmt.Fprintf(os.Stderr, "reason: %s\n", apperrors.Reason(err))
		}
		os.Exit(2)
	}
}

func parseHistory(raw string) []models.ConversationTurn {
	var turns []models.ConversationTurn
	for _, q := range strings.Split(raw, ";") {
		if q = strings.TrimSpace(q); q != "" {
			turns = append(turns, models.ConversationTurn{Question: q})
		}
	}
	return turns
}
