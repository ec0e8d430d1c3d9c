package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/yourusername/qpaper-go/internal/app"
	"github.com/yourusername/qpaper-go/internal/domain"
	"github.com/yourusername/qpaper-go/internal/infrastructure"
	"github.com/yourusername/qpaper-go/pkg/logger"
)

// localConfig loads the config and applies fetch flag overrides
func localConfig(cmd *cobra.Command) (*domain.Config, error) {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("attempts") {
		config.Fetch.MaxAttempts, _ = flags.GetInt("attempts")
	}
	if flags.Changed("min-size") {
		config.Fetch.MinSize, _ = flags.GetInt64("min-size")
	}
	if flags.Changed("timeout") {
		config.Fetch.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("base-dir") {
		config.Fetch.BaseDir, _ = flags.GetString("base-dir")
	}
	return config, nil
}

func newLocalFetcher(config *domain.Config) *infrastructure.HTTPFetcher {
	return infrastructure.NewHTTPFetcher(config.Fetch.Backoff, logger.NewCLI(verbose),
		infrastructure.WithLockDir(config.Fetch.LockDir()))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().Int("attempts", 0, "Maximum attempts per paper (default from config)")
	cmd.Flags().Int64("min-size", 0, "Minimum accepted size in bytes (default from config)")
	cmd.Flags().Duration("timeout", 0, "Per-attempt timeout (default from config)")
	cmd.Flags().String("base-dir", "", "Base directory (default from config)")
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [url] [destination]",
	Short: "Fetch one paper now",
	Long: `Fetch one paper with retries and write it atomically.

The destination may be omitted when --name is given; the paper is then
placed in the catalog layout under the papers directory.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := localConfig(cmd)
		if err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		var dest string
		switch {
		case len(args) == 2:
			dest = args[1]
		case name != "":
			dest, err = infrastructure.ResolveDestination(config.Fetch.PapersDir(), name)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("either a destination or --name is required")
		}

		ctx, cancel := signalContext()
		defer cancel()

		outcome := newLocalFetcher(config).Fetch(ctx, config.Fetch.NewRequest(args[0], dest))
		if !outcome.Succeeded() {
			return fmt.Errorf("fetch failed (%s) after %d attempt(s): %w", outcome.Reason(), outcome.Attempts, outcome.Err)
		}

		fmt.Printf("Saved %s (%s) after %d attempt(s)\n", outcome.Path, humanize.Bytes(uint64(outcome.ByteSize)), outcome.Attempts)
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch every paper in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := localConfig(cmd)
		if err != nil {
			return err
		}

		catalogPath := config.Catalog.Path
		if cmd.Flags().Changed("catalog") {
			catalogPath, _ = cmd.Flags().GetString("catalog")
		}
		catalog, err := infrastructure.LoadCatalog(catalogPath)
		if err != nil {
			return err
		}

		delay := config.Catalog.PoliteDelay
		if cmd.Flags().Changed("delay") {
			delay, _ = cmd.Flags().GetDuration("delay")
		}

		logs := logger.NewSingleLoggerAdapter(logger.NewCLI(verbose))
		syncer := app.NewSyncer(newLocalFetcher(config), nil, nil, &config.Fetch, delay, logs)
		skip, _ := cmd.Flags().GetBool("skip-existing")
		syncer.SetSkipExisting(skip)

		ctx, cancel := signalContext()
		defer cancel()

		report := syncer.Sync(ctx, catalog)

		table := uitable.New()
		table.MaxColWidth = 60
		table.AddRow("NAME", "STATUS", "SIZE", "DETAIL")
		for _, r := range report.Results {
			size := "-"
			if r.ByteSize > 0 {
				size = humanize.Bytes(uint64(r.ByteSize))
			}
			detail := r.Path
			if r.Error != "" {
				detail = r.Error
			}
			table.AddRow(r.Name, r.Status, size, detail)
		}
		fmt.Println(table)
		fmt.Printf("\n%d fetched, %d failed, %d skipped of %d in %s\n",
			report.Fetched, report.Failed, report.Skipped, report.Total, report.Duration.Round(time.Millisecond))

		if report.Failed > 0 {
			return fmt.Errorf("%d paper(s) failed", report.Failed)
		}
		return nil
	},
}

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Create the papers directory layout and a README guide",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := localConfig(cmd)
		if err != nil {
			return err
		}

		dirs, err := infrastructure.CreateLayout(config.Fetch.PapersDir())
		for _, dir := range dirs {
			fmt.Println(dir)
		}
		if err != nil {
			return err
		}

		if noGuide, _ := cmd.Flags().GetBool("no-guide"); noGuide {
			return nil
		}
		catalogPath := config.Catalog.Path
		if cmd.Flags().Changed("catalog") {
			catalogPath, _ = cmd.Flags().GetString("catalog")
		}
		catalog, err := infrastructure.LoadCatalog(catalogPath)
		if err != nil {
			return err
		}
		guide, err := infrastructure.WriteGuide(config.Fetch.PapersDir(), catalog)
		if err != nil {
			return err
		}
		fmt.Println(guide)
		return nil
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Show catalog entries and where they will be stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := localConfig(cmd)
		if err != nil {
			return err
		}

		catalogPath := config.Catalog.Path
		if cmd.Flags().Changed("catalog") {
			catalogPath, _ = cmd.Flags().GetString("catalog")
		}
		catalog, err := infrastructure.LoadCatalog(catalogPath)
		if err != nil {
			return err
		}

		table := uitable.New()
		table.MaxColWidth = 70
		table.AddRow("BOARD", "NAME", "PATH")
		for _, group := range catalog.Boards {
			for _, entry := range group.Papers {
				path, err := infrastructure.ResolveDestination(config.Fetch.PapersDir(), entry.Name)
				if err != nil {
					path = "unparseable: " + err.Error()
				}
				table.AddRow(group.Board, entry.Name, path)
			}
		}
		fmt.Println(table)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := app.LoadConfig(configPath)
		if err != nil {
			return err
		}

		table := uitable.New()
		table.AddRow("papers dir:", config.Fetch.PapersDir())
		table.AddRow("max attempts:", config.Fetch.MaxAttempts)
		table.AddRow("timeout:", config.Fetch.Timeout)
		table.AddRow("backoff:", config.Fetch.Backoff)
		table.AddRow("min size:", humanize.Bytes(uint64(config.Fetch.MinSize)))
		table.AddRow("expected type:", config.Fetch.ExpectedMIME+" / "+config.Fetch.ExpectedSuffix)
		table.AddRow("database:", config.Queue.DatabasePath)
		table.AddRow("concurrent limit:", config.Queue.ConcurrentLimit)
		table.AddRow("catalog:", valueOr(config.Catalog.Path, "built-in"))
		table.AddRow("schedule:", valueOr(config.Catalog.Schedule, "disabled"))
		table.AddRow("server:", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port))
		fmt.Println(table)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with default values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "configs/config.yaml"
		if len(args) == 1 {
			path = args[0]
		}

		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := app.SaveConfig(domain.DefaultConfig(), path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configInitCmd)

	addFetchFlags(fetchCmd)
	fetchCmd.Flags().StringP("name", "n", "", "Catalog paper name used to derive the destination")

	addFetchFlags(syncCmd)
	syncCmd.Flags().String("catalog", "", "Catalog YAML file (default from config, else built-in)")
	syncCmd.Flags().Duration("delay", 0, "Delay between fetches (default from config)")
	syncCmd.Flags().Bool("skip-existing", false, "Skip papers whose destination already holds a valid file")

	layoutCmd.Flags().String("base-dir", "", "Base directory (default from config)")
	layoutCmd.Flags().String("catalog", "", "Catalog YAML file listed in the guide (default from config, else built-in)")
	layoutCmd.Flags().Bool("no-guide", false, "Don't write the README guide")

	catalogCmd.Flags().String("catalog", "", "Catalog YAML file (default from config, else built-in)")
	catalogCmd.Flags().String("base-dir", "", "Base directory (default from config)")
}
