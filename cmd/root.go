package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	pkgconfig "github.com/PeakJoy/gzxspider/pkg/config"
)

// newRootCmd builds the command tree around v. Tests pass a fresh viper;
// Execute uses the global one.
func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "gzxspider",
		Short: "A breadth-first web spider that stores pages matching a keyword query.",
		Long: `gzxspider crawls outward from a start URL one depth level at a time,
decodes every page to UTF-8 and stores the pages whose meta content matches
the keyword query.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return pkgconfig.InitConfig(v, cfgFile, nil)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	cmd.AddCommand(newCrawlCmd(v))
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(viper.GetViper()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
