// Package cli implements the paperboy command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/BenjaminSRussell/paperboy/internal/config"
)

// NewRootCmd builds the command tree. Every subcommand reads the same viper
// instance, filled from defaults, the config file, PAPERBOY_* variables and
// its own flags.
func NewRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "paperboy",
		Short: "Crawl People's Daily issues for article URLs",
		Long: `paperboy walks every People's Daily front page in a date range, follows
links into each issue's sections, and appends every article URL it finds to
an output file as soon as the page is confirmed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return config.ReadFile(v, cfgFile)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default searches ./%s.yaml and %s)", config.AppName, config.ConfigDir()))

	cmd.AddCommand(newCrawlCmd(v))
	cmd.AddCommand(newSeedsCmd(v))
	cmd.AddCommand(newExportCmd(v))
	cmd.AddCommand(newRunsCmd(v))

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// bindFlags maps viper keys to flag names. It runs in PreRunE so that two
// commands sharing a key do not overwrite each other's binding.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
