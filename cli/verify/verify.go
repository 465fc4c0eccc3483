package verify

import (
	"crypto/rsa"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/buger/goterm"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kelda/licensecheck/pkg/config"
	"github.com/kelda/licensecheck/pkg/errors"
	"github.com/kelda/licensecheck/pkg/license"
	"github.com/kelda/licensecheck/pkg/licensefile"
	"github.com/kelda/licensecheck/pkg/strs"
)

var fs = afero.NewOsFs()

type options struct {
	keyFile         string
	features        []int
	notFeatures     []int
	notBlocked      bool
	notExpired      bool
	trustedTime     bool
	machine         bool
	maxSignatureAge int
	metricsFile     string
}

func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "verify [LICENSE_FILE...]",
		Short: "Check that license files are genuine and satisfy a policy",
		Long: "Verify checks the signature of each license file against the issuer's " +
			"public key, and then the policy selected by the flags. Every file must " +
			"pass for the command to succeed.",
		Run: func(_ *cobra.Command, args []string) {
			cfg, err := config.Load()
			if err != nil {
				errors.HandleFatalError(errors.WithContext("load config", err))
			}

			if opts.keyFile == "" {
				opts.keyFile = cfg.PublicKeyFile
			}
			if opts.maxSignatureAge < 0 {
				opts.maxSignatureAge = cfg.SignatureMaxAgeDays
			}
			if len(args) == 0 {
				args = []string{cfg.LicenseFile}
			}

			if err := run(os.Stdout, cfg, opts, strs.Unique(args)); err != nil {
				errors.HandleFatalError(err)
			}
		},
	}

	cmd.Flags().StringVarP(&opts.keyFile, "key", "k", "",
		"Path to the issuer's public key (PEM or XML). Defaults to the configured key.")
	cmd.Flags().IntSliceVar(&opts.features, "feature", nil,
		"Require feature N (1-8) to be enabled. May be repeated.")
	cmd.Flags().IntSliceVar(&opts.notFeatures, "not-feature", nil,
		"Require feature N (1-8) to be disabled. May be repeated.")
	cmd.Flags().BoolVar(&opts.notBlocked, "not-blocked", true,
		"Require the license not to be blocked.")
	cmd.Flags().BoolVar(&opts.notExpired, "not-expired", true,
		"Require the license not to have expired.")
	cmd.Flags().BoolVar(&opts.trustedTime, "trusted-time", false,
		"Also ask the configured time server whether the local clock was tampered with.")
	cmd.Flags().BoolVar(&opts.machine, "machine", false,
		"Require the license to be activated on this machine.")
	cmd.Flags().IntVar(&opts.maxSignatureAge, "max-signature-age", -1,
		"Reject licenses signed this many days ago or earlier. 0 disables the check. "+
			"Defaults to the configured value.")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-textfile", "",
		"Write check counters in the Prometheus text format to this path, "+
			"for the node exporter's textfile collector.")

	return cmd
}

type fileResult struct {
	path   string
	result license.Result
}

func run(out io.Writer, cfg config.Config, opts options, files []string) error {
	key, err := loadKey(opts.keyFile)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics, err := license.NewMetrics(reg)
	if err != nil {
		return err
	}

	oracle := cfg.TimeOracle()
	v := license.NewValidator(
		license.WithTimeOracle(oracle),
		license.WithHashFunc(cfg.Hash()),
		license.WithLogger(log.StandardLogger()),
		license.WithMetrics(metrics))

	// Licenses are verified in parallel. A file that can't be read aborts the
	// run, while a license that fails a check is only reported.
	results := make([]fileResult, len(files))
	var group errgroup.Group
	for i, path := range files {
		i, path := i, path
		group.Go(func() error {
			lic, err := licensefile.Load(fs, path)
			if err != nil {
				return errors.WithContext(path, err)
			}
			results[i] = fileResult{path, check(v, key, lic, opts)}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 10, 5, ' ', 0)
	var invalid int
	for _, res := range results {
		if res.result.IsValid() {
			fmt.Fprintf(tw, "%s\t%s\n", res.path, goterm.Color("VALID", goterm.GREEN))
			continue
		}

		invalid++
		fmt.Fprintf(tw, "%s\t%s\n", res.path,
			goterm.Color("INVALID: "+res.result.Err().Error(), goterm.RED))
		log.WithFields(log.Fields{
			"path":  res.path,
			"kind":  errors.KindOf(res.result.Err()).String(),
			"cause": errors.RootCause(res.result.Err()).Error(),
		}).Debug("License rejected")
	}
	if err := tw.Flush(); err != nil {
		return errors.WithContext("write results", err)
	}

	if opts.metricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.metricsFile, reg); err != nil {
			return errors.WithContext("write metrics", err)
		}
	}

	if invalid != 0 {
		return errors.NewFriendlyError("%d of %d licenses failed verification", invalid, len(files))
	}
	return nil
}

// check builds the chain of checks selected by opts. The signature is always
// checked first.
func check(v *license.Validator, key *rsa.PublicKey, lic *license.License, opts options) license.Result {
	result := v.Check(lic)
	if opts.maxSignatureAge > 0 {
		result = result.HasFreshSignature(key, opts.maxSignatureAge)
	} else {
		result = result.HasValidSignature(key)
	}

	if opts.notBlocked {
		result = result.IsNotBlocked()
	}

	if opts.trustedTime {
		result = result.HasNotExpiredTrusted()
	} else if opts.notExpired {
		result = result.HasNotExpired()
	}

	for _, n := range opts.features {
		result = result.HasFeature(n)
	}
	for _, n := range opts.notFeatures {
		result = result.HasNotFeature(n)
	}

	if opts.machine {
		result = result.IsOnRightMachine()
	}
	return result
}

func loadKey(path string) (*rsa.PublicKey, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFriendlyError("Public key %s does not exist. "+
				"Pass --key or set publicKeyFile in %s.", path, config.Path())
		}
		return nil, errors.WithContext("read public key", err)
	}

	key, err := license.ParsePublicKey(data)
	if err != nil {
		return nil, errors.WithContext("parse public key", err)
	}
	return key, nil
}
