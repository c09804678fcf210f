// test-model-outputs checks how well candidate models generate SQL for the
// tender database. Each sample question is sent with the production prompt
// and the response is run through the same normalize, validate and syntax
// stages the pipeline uses. Nothing is executed against a database.
//
// Usage: go run ./scripts/test-model-outputs -endpoint http://host:30000/v1 -models a,b
//
// The API key is read from LLM_API_KEY when the endpoint needs one.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdb/pkg/llm"
	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/prompts"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
	"github.com/ekaya-inc/ekaya-askdb/pkg/sql"
)

var sampleQuestions = []string{
	"What was the largest approved tender in 2024?",
	"How many employees do we have?",
	"Show the 10 most recent tenders",
	"Which department has the most employees?",
	"What is the total value of tenders won last year?",
}

// TestResult is the outcome for one question against one model.
type TestResult struct {
	Question   string
	RawSQL     string
	FinalSQL   string
	Error      string
	DurationMs int64
}

func main() {
	endpoint := flag.String("endpoint", "https://api.openai.com/v1", "OpenAI-compatible endpoint")
	modelList := flag.String("models", "gpt-4o-mini", "Comma separated model names")
	timeout := flag.Duration("timeout", 60*time.Second, "Timeout for each model call")
	flag.Parse()

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, _ := logConfig.Build()
	defer logger.Sync()

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("NL to SQL Output Test")
	fmt.Printf("Endpoint: %s\n", *endpoint)
	fmt.Println(strings.Repeat("=", 80))

	snapshot := services.DefaultStaticSnapshot()
	ctx := context.Background()

	failures := map[string]int{}
	var modelNames []string
	for _, m := range strings.Split(*modelList, ",") {
		if m = strings.TrimSpace(m); m != "" {
			modelNames = append(modelNames, m)
		}
	}

	for _, model := range modelNames {
		fmt.Printf("\n%s\n", strings.Repeat("-", 80))
		fmt.Printf("Testing: %s\n", model)
		fmt.Printf("%s\n\n", strings.Repeat("-", 80))

		client, err := llm.NewClient(&llm.Config{
			Endpoint:      *endpoint,
			Model:         model,
			APIKey:        os.Getenv("LLM_API_KEY"),
			SystemMessage: prompts.BuildNLToSQLSystemMessage(),
			MaxTokens:     500,
			Timeout:       *timeout,
		}, logger)
		if err != nil {
			fmt.Printf("Failed to create client: %v\n", err)
			failures[model] = len(sampleQuestions)
			continue
		}

		for _, q := range sampleQuestions {
			result := testQuestion(ctx, client, snapshot, q)
			printResult(result)
			if result.Error != "" {
				failures[model]++
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 80))
	fmt.Println("SUMMARY")
	fmt.Printf("%s\n\n", strings.Repeat("=", 80))

	allPassed := true
	for _, model := range modelNames {
		n := failures[model]
		status := "✓ PASS"
		if n > 0 {
			status = "✗ FAIL"
			allPassed = false
		}
		fmt.Printf("%s: %s (%d/%d usable)\n", status, model, len(sampleQuestions)-n, len(sampleQuestions))
	}

	if !allPassed {
		os.Exit(1)
	}
}

func testQuestion(ctx context.Context, client llm.Completer, snapshot *models.SchemaSnapshot, question string) TestResult {
	result := TestResult{Question: question}
	start := time.Now()

	prompt := prompts.BuildNLToSQLPrompt(prompts.EscapeQuestion(question), snapshot, nil)
	raw, err := client.Complete(ctx, prompt)
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Error = fmt.Sprintf("API call failed: %v", err)
		return result
	}
	result.RawSQL = raw

	normalized := sql.Normalize(raw)
	if normalized == "" {
		result.Error = "empty after normalization"
		return result
	}
	if err := sql.Validate(normalized); err != nil {
		result.Error = fmt.Sprintf("rejected (%s): %v", sql.RuleName(err), err)
		return result
	}
	final := sql.InjectSoftDeleteFilter(normalized)
	if !sql.HasSoftDeleteFilter(final) {
		result.Error = "soft-delete filter could not be placed"
		return result
	}
	if err := sql.GuardSyntax(final); err != nil {
		result.Error = fmt.Sprintf("syntax check failed: %v", err)
		return result
	}
	result.FinalSQL = final
	return result
}

func printResult(result TestResult) {
	fmt.Printf("Q: %s (%dms)\n", result.Question, result.DurationMs)
	if result.Error != "" {
		fmt.Printf("  ✗ %s\n", result.Error)
		if result.RawSQL != "" {
			fmt.Printf("  raw: %s\n", truncateString(strings.Join(strings.Fields(result.RawSQL), " "), 200))
		}
		return
	}
	fmt.Printf("  ✓ %s\n", truncateString(result.FinalSQL, 200))
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
