package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/yourusername/qpaper-go/internal/app"
	"github.com/yourusername/qpaper-go/internal/domain"
)

var (
	serverURL   string
	configPath  string
	noAutoStart bool
	verbose     bool
	rootCmd     = &cobra.Command{
		Use:   "qpaper",
		Short: "qpaper - question paper collector",
		Long: `A command-line interface for fetching exam question papers.

Local commands (fetch, sync, layout, catalog, config) run in this process.
Queue commands talk to the qpaper server, starting it when needed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8090", "Server URL")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(fetchCmd, syncCmd, layoutCmd, catalogCmd, configCmd)
	rootCmd.AddCommand(addCmd, listCmd, statsCmd, getCmd, cancelCmd, retryCmd, deleteCmd, enqueueCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Add a paper to the server queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		name, _ := cmd.Flags().GetString("name")
		dest, _ := cmd.Flags().GetString("dest")

		payload := map[string]string{"url": args[0]}
		if name != "" {
			payload["name"] = name
		}
		if dest != "" {
			payload["destination"] = dest
		}

		var paper domain.Paper
		if err := apiRequest(http.MethodPost, "/api/v1/papers", payload, &paper); err != nil {
			return err
		}

		fmt.Printf("Paper queued\n")
		fmt.Printf("ID:          %s\n", paper.ID)
		fmt.Printf("Status:      %s\n", paper.Status)
		fmt.Printf("Destination: %s\n", paper.Destination)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued and processed papers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		query := url.Values{}
		for _, key := range []string{"status", "board", "year"} {
			if v, _ := cmd.Flags().GetString(key); v != "" {
				query.Set(key, v)
			}
		}
		path := "/api/v1/papers"
		if len(query) > 0 {
			path += "?" + query.Encode()
		}

		var papers []domain.Paper
		if err := apiRequest(http.MethodGet, path, nil, &papers); err != nil {
			return err
		}

		table := uitable.New()
		table.MaxColWidth = 50
		table.AddRow("ID", "NAME", "STATUS", "ATTEMPTS", "SIZE", "CREATED")
		for _, p := range papers {
			size := "-"
			if p.ByteSize > 0 {
				size = humanize.Bytes(uint64(p.ByteSize))
			}
			table.AddRow(truncate(p.ID, 8), p.Name, p.Status, p.Attempts, size, humanize.Time(p.CreatedAt))
		}
		fmt.Println(table)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		var stats domain.PaperStats
		if err := apiRequest(http.MethodGet, "/api/v1/papers/stats", nil, &stats); err != nil {
			return err
		}

		table := uitable.New()
		table.AddRow("Total:", stats.Total)
		table.AddRow("Queued:", stats.Queued)
		table.AddRow("Processing:", stats.Processing)
		table.AddRow("Completed:", stats.Completed)
		table.AddRow("Failed:", stats.Failed)
		table.AddRow("Cancelled:", stats.Cancelled)
		table.AddRow("Fetched:", humanize.Bytes(uint64(stats.Bytes)))
		fmt.Println("Queue Statistics:")
		fmt.Println(table)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get paper details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		var p domain.Paper
		if err := apiRequest(http.MethodGet, "/api/v1/papers/"+args[0], nil, &p); err != nil {
			return err
		}

		table := uitable.New()
		table.Wrap = true
		table.AddRow("ID:", p.ID)
		table.AddRow("Name:", p.Name)
		table.AddRow("URL:", p.URL)
		table.AddRow("Destination:", p.Destination)
		table.AddRow("Status:", p.Status)
		table.AddRow("Attempts:", p.Attempts)
		table.AddRow("Retries:", p.RetryCount)
		table.AddRow("Created:", p.CreatedAt.Format(time.RFC3339))
		if p.ByteSize > 0 {
			table.AddRow("Size:", humanize.Bytes(uint64(p.ByteSize)))
		}
		if p.FailureReason != "" {
			table.AddRow("Reason:", p.FailureReason)
		}
		if p.ErrorMessage != "" {
			table.AddRow("Error:", p.ErrorMessage)
		}
		fmt.Println(table)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a queued or in-flight paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		if err := apiRequest(http.MethodPost, "/api/v1/papers/"+args[0]+"/cancel", nil, nil); err != nil {
			return err
		}
		fmt.Println("Paper cancelled")
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Requeue a failed or cancelled paper",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		if err := apiRequest(http.MethodPost, "/api/v1/papers/"+args[0]+"/retry", nil, nil); err != nil {
			return err
		}
		fmt.Println("Paper queued for retry")
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Remove a paper from the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		if err := apiRequest(http.MethodDelete, "/api/v1/papers/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Println("Paper deleted")
		return nil
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue every entry of the server's catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		var report app.BatchReport
		if err := apiRequest(http.MethodPost, "/api/v1/catalog/enqueue", nil, &report); err != nil {
			return err
		}
		fmt.Printf("Catalog enqueued: %d queued, %d already present, %d skipped (of %d)\n",
			report.Queued, report.Duplicate, report.Skipped, report.Total)
		return nil
	},
}

func init() {
	addCmd.Flags().StringP("name", "n", "", "Catalog paper name, e.g. CBSE-Class-10-Mathematics-2024")
	addCmd.Flags().StringP("dest", "d", "", "Destination path under the papers directory (derived from --name when empty)")
	listCmd.Flags().StringP("status", "s", "", "Filter by status")
	listCmd.Flags().StringP("board", "b", "", "Filter by board code")
	listCmd.Flags().StringP("year", "y", "", "Filter by year")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
