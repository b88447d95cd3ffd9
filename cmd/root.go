package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/glpictl/config"
	"github.com/s0up4200/glpictl/filter"
	"github.com/s0up4200/glpictl/glpi"
)

var (
	cfgFile      string
	outputFormat string
	cfg          *config.Config
	logger       = zerolog.Nop()
	client       *glpi.Client
	filters      *filter.Manager

	profileID       int
	entity          string
	entityRecursive bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "glpictl",
	Short: "A command line client for the GLPI REST API",
	Long: `glpictl talks to the GLPI REST API (apirest.php). It opens a session with
an API user token or a login, lets you read, search and modify GLPI items,
and kills the session when the command is done.

Searches accept field uids such as "Entity.completename" in place of the
numeric search option ids GLPI expects.`,
	SilenceUsage:      true,
	PersistentPreRunE: initializeApp,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	closeSession()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, ~/.glpictl/config.yaml or /etc/glpictl/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format: table or json (overrides output.format)")
	rootCmd.PersistentFlags().IntVar(&profileID, "profile", 0, "activate this profile id after login")
	rootCmd.PersistentFlags().StringVar(&entity, "entity", "", `activate this entity id, or "all", after login`)
	rootCmd.PersistentFlags().BoolVar(&entityRecursive, "recursive", false, "with --entity, also activate the child entities")
}

// initializeApp loads the configuration and sets up logging
func initializeApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger = setupLogger(cfg.Logging)
	if cfg.File != "" {
		logger.Debug().Str("file", cfg.File).Msg("Loaded configuration")
	}

	if outputFormat != "" {
		if outputFormat != "table" && outputFormat != "json" {
			return fmt.Errorf("invalid output format: %s (must be 'table' or 'json')", outputFormat)
		}
		cfg.Output.Format = outputFormat
	}

	evaluator := filter.NewConcurrentEvaluator(filter.WithLogger(logger))
	filters = filter.NewManager(filter.WithEvaluator(evaluator))

	where := make(map[string]string, len(cfg.Searches))
	for name, search := range cfg.Searches {
		if search.Where != "" {
			where[name] = search.Where
		}
	}
	if err := filters.RegisterFilters(where); err != nil {
		return fmt.Errorf("invalid saved search: %w", err)
	}

	return nil
}

// connect opens the GLPI session used by the command and applies the
// --profile and --entity selection. The session is killed by Execute once
// the command returns.
func connect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	opts := append(cfg.GLPI.Options(), glpi.WithLogger(logger))

	var err error
	client, err = glpi.New(ctx, cfg.GLPI.URL, cfg.GLPI.AppToken, cfg.GLPI.Credentials(), opts...)
	if err != nil {
		return err
	}

	if profileID > 0 {
		if err := client.SetActiveProfile(ctx, profileID); err != nil {
			return fmt.Errorf("failed to activate profile %d: %w", profileID, err)
		}
		logger.Debug().Int("profile", profileID).Msg("Activated profile")
	}

	if entity != "" {
		var target any = glpi.AllEntities
		if entity != glpi.AllEntities {
			id, err := parseID(entity)
			if err != nil {
				return err
			}
			target = id
		}
		if err := client.SetActiveEntities(ctx, target, entityRecursive); err != nil {
			return fmt.Errorf("failed to activate entity %s: %w", entity, err)
		}
		logger.Debug().Str("entity", entity).Bool("recursive", entityRecursive).Msg("Activated entity")
	}

	return nil
}

func closeSession() {
	if client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Close(ctx); err != nil && !glpi.IsSessionError(err) {
		logger.Warn().Err(err).Msg("Failed to kill GLPI session")
	}
	client = nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !isTerminal(os.Stderr),
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
