package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/pennywise/pennywise/internal/analytics"
	"github.com/pennywise/pennywise/internal/backend"
	"github.com/pennywise/pennywise/internal/config"
	"github.com/pennywise/pennywise/internal/logger"
	"github.com/pennywise/pennywise/internal/parser"
	"github.com/pennywise/pennywise/internal/store"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "parse":
		runParse(log)
	case "add":
		runAdd(log)
	case "list":
		runList(log)
	case "summary":
		runSummary(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Pennywise CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  parse     Parse free text into structured transactions and print them")
	fmt.Println("  add       Parse free text and store the transactions")
	fmt.Println("  list      List an owner's most recent transactions")
	fmt.Println("  summary   Print an owner's totals for a period")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// newParser builds the transaction parser; without GEMINI_API_KEY it runs in
// keyword-fallback mode.
func newParser(ctx context.Context, cfg *config.Config, log zerolog.Logger) *parser.Parser {
	var client *genai.Client
	if cfg.GeminiAPIKey != "" {
		var err error
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:      cfg.GeminiAPIKey,
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
	}
	return parser.New(client, cfg.GeminiModel, log)
}

func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) *backend.Backend {
	be, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage backend")
	}
	return be
}

func runParse(log zerolog.Logger) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	text := fs.String("text", "", "Free text to parse, e.g. \"Lunch $12.50; gas $40\"")
	fs.Parse(os.Args[2:])

	if *text == "" {
		log.Fatal().Msg("Error: --text is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.Load()
	parsed := newParser(ctx, cfg, log).ParseAll(ctx, *text)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(parsed)
}

func runAdd(log zerolog.Logger) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	text := fs.String("text", "", "Free text to parse and store")
	owner := fs.String("owner", "", "Owner id to store the transactions under")
	fs.Parse(os.Args[2:])

	if *text == "" || *owner == "" {
		log.Fatal().Msg("Usage: cli add -owner ID -text TEXT")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	be := openBackend(ctx, cfg, log)
	defer be.Close()

	parsed := newParser(ctx, cfg, log).ParseAll(ctx, *text)
	rows := make([]*store.TransactionRow, 0, len(parsed))
	now := time.Now()
	for i, p := range parsed {
		rows = append(rows, &store.TransactionRow{
			ID:          fmt.Sprintf("cli-%d-%d", now.UnixNano(), i),
			OwnerID:     *owner,
			Description: p.Description,
			Amount:      p.Amount,
			Type:        store.TransactionType(p.Type),
			Category:    p.Category,
			Date:        p.Date,
			AiParsed:    p.AiParsed,
			RawInput:    p.RawInput,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	if err := be.Transactions.InsertMany(ctx, rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to store transactions")
	}
	fmt.Printf("Stored %d transaction(s).\n", len(rows))
}

func runList(log zerolog.Logger) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	owner := fs.String("owner", "", "Owner id to list")
	limit := fs.Int("limit", 20, "Number of transactions to show")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	be := openBackend(ctx, cfg, log)
	defer be.Close()

	rows, total, err := be.Transactions.List(ctx, *owner, store.TransactionFilter{Limit: *limit})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}

	fmt.Printf("=== Transactions (%d of %d) ===\n", len(rows), total)
	for i, row := range rows {
		sign := "-"
		if row.Type == store.TypeIncome {
			sign = "+"
		}
		fmt.Printf("%2d. %s  %s%.2f  %-20s %s\n",
			i+1, row.Date.Format("2006-01-02"), sign, row.Amount, row.Category, row.Description)
	}
}

func runSummary(log zerolog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	owner := fs.String("owner", "", "Owner id to summarize")
	period := fs.String("period", "month", "Period: week, month, year, or all")
	fs.Parse(os.Args[2:])

	if *owner == "" {
		log.Fatal().Msg("Error: --owner is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	be := openBackend(ctx, cfg, log)
	defer be.Close()

	sum, err := analytics.NewService(be.Transactions, log).Summary(ctx, *owner, analytics.Query{Period: *period})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute summary")
	}

	fmt.Printf("=== Summary (%s) ===\n", *period)
	fmt.Printf("Income:   %10.2f  (%d transactions)\n", sum.TotalIncome, sum.IncomeCount)
	fmt.Printf("Expenses: %10.2f  (%d transactions)\n", sum.TotalExpenses, sum.ExpenseCount)
	fmt.Printf("Net:      %10.2f\n", sum.NetIncome)
	if sum.ExpenseChange != nil {
		fmt.Printf("Expenses vs last month: %+.1f%%\n", *sum.ExpenseChange)
	}
}
