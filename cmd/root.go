package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wawrzek/carbon-multi-resize/lib"
)

var (
	configFile string
	v          = viper.New()
	logger     = zap.NewNop()

	rootCmd = &cobra.Command{
		Use:           "carbon-multi-resize",
		Short:         "resize whisper files whose retentions or aggregation differ from the storage schemas",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read config %s: %w", configFile, err)
				}
			}
			l, err := lib.NewLogger(v.GetString("log-level"), v.GetString("log-format"))
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
)

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves flags, environment and config file into a validated Config.
func loadConfig() (*lib.Config, error) {
	return lib.LoadConfig(v)
}

func init() {
	rootCmd.PersistentFlags().BoolP("help", "", false, "help for this command")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "path to a YAML config file")
	flags.String("graphite-root", "", "graphite installation root, other paths default below it (env GRAPHITE_ROOT)")
	flags.String("whisper-dir", "", "root of the whisper tree (default <graphite-root>/storage/whisper)")
	flags.String("lists-dir", "", "directory holding membership lists (default <graphite-root>/storage/lists)")
	flags.String("schemas", "", "path to storage-schemas.conf (default <graphite-root>/conf/storage-schemas.conf)")
	flags.String("aggregation", "", "path to storage-aggregation.conf (default <graphite-root>/conf/storage-aggregation.conf)")
	flags.Duration("list-refresh-interval", 0, "minimum time between two checks of a membership list file")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log format: console or json")
	flags.String("metrics-textfile", "", "write run metrics to this file in Prometheus text format")

	lib.SetDefaults(v)
	if err := v.BindPFlags(flags); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	v.SetEnvPrefix("CARBON_RESIZE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("graphite-root", "GRAPHITE_ROOT")
}
