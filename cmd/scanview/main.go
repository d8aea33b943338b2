package main

import (
	"github.com/CompassSecurity/scanview/internal/cmd/common"
	"github.com/CompassSecurity/scanview/internal/cmd/filter"
	"github.com/CompassSecurity/scanview/internal/cmd/list"
	"github.com/CompassSecurity/scanview/internal/cmd/serve"
	"github.com/spf13/cobra"
)

func main() {
	common.Run(newRootCmd())
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scanview",
		Short: "View and filter port scan results",
		Long: `Scanview renders port scan results as an HTML page and filters the result rows by status and confidence.
Closed results are hidden unless --show-closed is set, --min-confidence drops everything below the chosen level.`,
		Version:      common.Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(filter.NewFilterCmd())
	rootCmd.AddCommand(list.NewListCmd())
	rootCmd.AddCommand(serve.NewServeCmd())

	common.SetupPersistentPreRun(rootCmd)
	common.AddCommonFlags(rootCmd)

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	return rootCmd
}
