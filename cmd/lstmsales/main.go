// Command lstmsales trains the multi-input LSTM sales forecaster and writes
// a submission file.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// reportedError marks an error that was already logged.
type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func newRootCmd() *cobra.Command {
	var cfgFile string
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "lstmsales",
		Short: "Multi-input LSTM sales forecaster",
		Long: `Trains a network on dense, yearly and monthly lookback features,
selects its layer widths by k-fold grid search and writes predictions for
the test set into a copy of the submission template.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	rootCmd.AddCommand(newTrainCmd(v, &cfgFile))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
