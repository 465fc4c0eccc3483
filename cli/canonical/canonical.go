package canonical

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kelda/licensecheck/pkg/errors"
	"github.com/kelda/licensecheck/pkg/license"
	"github.com/kelda/licensecheck/pkg/licensefile"
)

var fs = afero.NewOsFs()

func New() *cobra.Command {
	var showFields bool
	cmd := &cobra.Command{
		Use:   "canonical LICENSE_FILE",
		Short: "Print the canonical form that a license's signature covers",
		Long: "Canonical prints the exact byte sequence that the issuer signs. " +
			"Comparing it with the issuer's copy is the quickest way to find " +
			"which field makes a signature fail.",
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			if err := run(os.Stdout, args[0], showFields); err != nil {
				errors.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().BoolVar(&showFields, "fields", false,
		"Print one field per line, with its name.")
	return cmd
}

func run(out io.Writer, path string, showFields bool) error {
	lic, err := licensefile.Load(fs, path)
	if err != nil {
		return err
	}

	if !showFields {
		_, err := fmt.Fprintln(out, string(license.Canonical(lic)))
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 10, 2, ' ', 0)
	for _, field := range license.Fields(lic, true) {
		fmt.Fprintf(tw, "%s\t%s\n", field.Name, field.Value)
	}
	return tw.Flush()
}
