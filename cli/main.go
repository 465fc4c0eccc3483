package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kelda/licensecheck/cli/bugtool"
	"github.com/kelda/licensecheck/cli/canonical"
	"github.com/kelda/licensecheck/cli/machinecode"
	"github.com/kelda/licensecheck/cli/verify"
	"github.com/kelda/licensecheck/pkg/version"
)

func main() {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:     "licensecheck",
		Short:   "Verify signed license files",
		Version: version.Version,

		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Log why each check failed.")
	rootCmd.AddCommand(
		bugtool.New(),
		canonical.New(),
		machinecode.New(),
		verify.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
