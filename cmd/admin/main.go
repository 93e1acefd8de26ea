package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/tendant/simple-blog/pkg/simpleblog"
	"github.com/tendant/simple-blog/pkg/simpleblog/repo/memory"
	repopg "github.com/tendant/simple-blog/pkg/simpleblog/repo/postgres"
)

const usage = `Simple Blog Admin CLI

A lightweight admin tool for blog metadata that only requires database access.

USAGE:
  admin <command> [options]

COMMANDS:
  list      List blogs with optional filtering
  count     Count blogs with optional filtering
  stats     Get aggregated statistics

ENVIRONMENT VARIABLES:
  DATABASE_URL      PostgreSQL connection string (required for postgres)
  DATABASE_TYPE     Database type: postgres or memory (default: memory)

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

EXAMPLES:
  # List all blogs
  admin list

  # List blogs carrying a tag
  admin list --tag=go

  # List with pagination
  admin list --limit=10 --page=2

  # Include soft-deleted blogs
  admin list --include-deleted

  # Count blogs matching a title query
  admin count --query=kubernetes

  # Get statistics
  admin stats

  # Output as JSON
  admin list --json
  admin stats --json

OPTIONS (for list/count/stats):
  --tag=<tag>          Filter by tag (repeatable)
  --query=<text>       Filter by title, case-insensitive
  --sort=<order>       Sort order: created_at (default) or views
  --page=<n>           Page number (list only, default: 1)
  --limit=<n>          Page size (list only, default: 100)
  --include-deleted    Include soft-deleted blogs
  --json               Output as JSON
`

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage)
		os.Exit(0)
	}

	repo, err := createRepository()
	if err != nil {
		log.Fatalf("Failed to create repository: %v", err)
	}

	ctx := context.Background()
	filter, useJSON := parseFilter(os.Args[2:])

	switch command {
	case "list":
		handleList(ctx, repo, filter, useJSON)
	case "count":
		handleCount(ctx, repo, filter, useJSON)
	case "stats":
		handleStats(ctx, repo, filter, useJSON)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func createRepository() (simpleblog.Repository, error) {
	dbType := getEnv("DATABASE_TYPE", "memory")

	switch dbType {
	case "postgres":
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for postgres")
		}

		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}

		return repopg.NewWithPool(pool), nil

	case "memory":
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s (use 'postgres' or 'memory')", dbType)
	}
}

func parseFilter(args []string) (simpleblog.BlogFilter, bool) {
	filter := simpleblog.BlogFilter{
		SortBy:   simpleblog.SortByCreatedAt,
		Page:     1,
		PageSize: 100,
	}
	useJSON := false

	for _, arg := range args {
		if arg == "--json" {
			useJSON = true
			continue
		}

		key, value := parseFlag(arg)

		switch key {
		case "tag":
			filter.Tags = append(filter.Tags, value)
		case "query":
			filter.Query = value
		case "sort":
			if value == simpleblog.SortByViews {
				filter.SortBy = simpleblog.SortByViews
			}
		case "page":
			if n, err := strconv.Atoi(value); err == nil && n >= 1 {
				filter.Page = n
			}
		case "limit":
			if n, err := strconv.Atoi(value); err == nil && n >= 1 {
				filter.PageSize = n
			}
		case "include-deleted":
			filter.IncludeDeleted = true
		}
	}

	return filter, useJSON
}

func parseFlag(arg string) (string, string) {
	if !strings.HasPrefix(arg, "--") {
		return "", ""
	}
	arg = strings.TrimPrefix(arg, "--")
	if key, value, found := strings.Cut(arg, "="); found {
		return key, value
	}
	return arg, "true"
}

func handleList(ctx context.Context, repo simpleblog.Repository, filter simpleblog.BlogFilter, useJSON bool) {
	blogs, total, err := repo.ListBlogs(ctx, filter)
	if err != nil {
		log.Fatalf("Failed to list blogs: %v", err)
	}

	if useJSON {
		data, _ := json.MarshalIndent(map[string]interface{}{
			"blogs": blogs,
			"total": total,
		}, "", "  ")
		fmt.Println(string(data))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTITLE\tTAGS\tVIEWS\tCREATED\tDELETED\n")

	for _, blog := range blogs {
		deleted := "-"
		if blog.DeletedAt != nil {
			deleted = blog.DeletedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			blog.ID,
			truncate(blog.Title, 30),
			truncate(strings.Join(blog.Tags, ","), 25),
			blog.Views,
			blog.CreatedAt.Format("2006-01-02 15:04:05"),
			deleted,
		)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d", total)
	if filter.Page*filter.PageSize < total {
		fmt.Printf(" (has more, use --page=%d to continue)", filter.Page+1)
	}
	fmt.Println()
}

func handleCount(ctx context.Context, repo simpleblog.Repository, filter simpleblog.BlogFilter, useJSON bool) {
	filter.Page = 1
	filter.PageSize = 1

	_, total, err := repo.ListBlogs(ctx, filter)
	if err != nil {
		log.Fatalf("Failed to count blogs: %v", err)
	}

	if useJSON {
		data, _ := json.MarshalIndent(map[string]int{"count": total}, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Total count: %d\n", total)
}

type statistics struct {
	TotalCount    int            `json:"total_count"`
	TotalViews    int64          `json:"total_views"`
	ByTag         map[string]int `json:"by_tag,omitempty"`
	DeletedCount  int            `json:"deleted_count"`
	OldestCreated *time.Time     `json:"oldest_created,omitempty"`
	NewestCreated *time.Time     `json:"newest_created,omitempty"`
}

func handleStats(ctx context.Context, repo simpleblog.Repository, filter simpleblog.BlogFilter, useJSON bool) {
	stats := statistics{ByTag: make(map[string]int)}

	// Page through everything that matches; stats always include soft-deleted
	// rows so the deleted count is meaningful.
	filter.IncludeDeleted = true
	filter.Page = 1
	filter.PageSize = 100

	for {
		blogs, total, err := repo.ListBlogs(ctx, filter)
		if err != nil {
			log.Fatalf("Failed to gather statistics: %v", err)
		}
		stats.TotalCount = total

		for _, blog := range blogs {
			stats.TotalViews += blog.Views
			if blog.DeletedAt != nil {
				stats.DeletedCount++
			}
			for _, tag := range blog.Tags {
				stats.ByTag[tag]++
			}
			created := blog.CreatedAt
			if stats.OldestCreated == nil || created.Before(*stats.OldestCreated) {
				stats.OldestCreated = &created
			}
			if stats.NewestCreated == nil || created.After(*stats.NewestCreated) {
				stats.NewestCreated = &created
			}
		}

		if filter.Page*filter.PageSize >= total {
			break
		}
		filter.Page++
	}

	if useJSON {
		data, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Println("=== Blog Statistics ===")
	fmt.Printf("\nTotal Count:   %d\n", stats.TotalCount)
	fmt.Printf("Total Views:   %d\n", stats.TotalViews)
	fmt.Printf("Soft-Deleted:  %d\n", stats.DeletedCount)

	if len(stats.ByTag) > 0 {
		fmt.Println("\nBy Tag:")
		for tag, count := range stats.ByTag {
			fmt.Printf("  %-20s: %d\n", tag, count)
		}
	}

	if stats.OldestCreated != nil && stats.NewestCreated != nil {
		fmt.Println("\nTime Range:")
		fmt.Printf("  Oldest: %s\n", stats.OldestCreated.Format(time.RFC3339))
		fmt.Printf("  Newest: %s\n", stats.NewestCreated.Format(time.RFC3339))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
