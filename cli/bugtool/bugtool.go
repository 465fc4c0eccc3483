package bugtool

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kelda/licensecheck/pkg/config"
	"github.com/kelda/licensecheck/pkg/errors"
	"github.com/kelda/licensecheck/pkg/license"
	"github.com/kelda/licensecheck/pkg/licensefile"
	"github.com/kelda/licensecheck/pkg/machine"
	"github.com/kelda/licensecheck/pkg/version"
)

var fs = afero.NewOsFs()

// machineCode is a variable so that tests don't depend on the host.
var machineCode = machine.Code

func New() *cobra.Command {
	var out string
	cmd := cobra.Command{
		Use:   "bug-tool [LICENSE_FILE...]",
		Short: "Generate an archive for debugging license verification",
		Run: func(_ *cobra.Command, args []string) {
			cfg, err := config.Load()
			if err != nil {
				log.WithError(err).Warn("Failed to load config, using defaults")
				cfg = config.Default()
			}

			if len(args) == 0 {
				args = []string{cfg.LicenseFile}
			}

			if out == "" {
				out = fmt.Sprintf("licensecheck-bug-info-%s.tar.gz",
					time.Now().Format("Jan_02_2006-15-04-05"))
			}

			if err := run(cfg, args, out); err != nil {
				log.Fatal(err)
			}

			msg := `Created bug information archive at '%s'.
	It contains your license files. You may want to edit the archive before sharing it.
	`
			fmt.Printf(msg, out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "path to write archive to")
	return &cmd
}

func run(cfg config.Config, licenseFiles []string, out string) error {
	tmpdir, err := afero.TempDir(fs, "", "licensecheck-bug-tool")
	if err != nil {
		return errors.WithContext("create report directory", err)
	}

	defer func() {
		err := fs.RemoveAll(tmpdir)
		if err != nil {
			log.Errorf("could not remove tmp dir: %s", err)
		}
	}()

	setupReports(tmpdir, cfg, licenseFiles)

	if err := tarDirectory(tmpdir, out); err != nil {
		return errors.WithContext("tar", err)
	}
	return nil
}

func setupReports(dir string, cfg config.Config, licenseFiles []string) {
	//Add more bug reports here.
	var err error
	err = writeToReportFile(filepath.Join(dir, "version.txt"), version.Version)
	if err != nil {
		log.Errorf("version reporting failed because: %s", err)
	}

	err = reportConfig(dir, cfg)
	if err != nil {
		log.Errorf("config reporting failed because: %s", err)
	}

	err = reportMachineCode(dir, cfg)
	if err != nil {
		log.Errorf("machine code reporting failed because: %s", err)
	}

	for i, path := range licenseFiles {
		err = reportLicense(filepath.Join(dir, fmt.Sprintf("license-%d", i)), cfg, path)
		if err != nil {
			log.Errorf("license reporting failed for %s because: %s", path, err)
		}
	}
}

func reportConfig(dir string, cfg config.Config) error {
	cfgBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext("marshal config", err)
	}
	return writeToReportFile(filepath.Join(dir, "config.yaml"), string(cfgBytes))
}

func reportMachineCode(dir string, cfg config.Config) error {
	code, err := machineCode(cfg.Hash())
	if err != nil {
		code = fmt.Sprintf("unavailable: %s", err)
	}
	report := fmt.Sprintf("hash: %s\ncode: %s\n", cfg.MachineHash, code)
	return writeToReportFile(filepath.Join(dir, "machine-code.txt"), report)
}

// reportLicense copies the license file and records its canonical form and
// the outcome of the default checks.
func reportLicense(dir string, cfg config.Config, path string) error {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return errors.WithContext("create directory", err)
	}

	if err := copyFileToDir(path, dir); err != nil {
		return err
	}

	lic, err := licensefile.Load(fs, path)
	if err != nil {
		return writeToReportFile(filepath.Join(dir, "result.txt"), fmt.Sprintf("load failed: %s\n", err))
	}

	var fields strings.Builder
	for _, field := range license.Fields(lic, true) {
		fmt.Fprintf(&fields, "%s=%s\n", field.Name, field.Value)
	}
	if err := writeToReportFile(filepath.Join(dir, "canonical.txt"), fields.String()); err != nil {
		return err
	}

	result := "key not available"
	keyBytes, err := afero.ReadFile(fs, cfg.PublicKeyFile)
	if err == nil {
		key, err := license.ParsePublicKey(keyBytes)
		if err != nil {
			result = fmt.Sprintf("key invalid: %s", err)
		} else {
			res := license.NewValidator(license.WithHashFunc(cfg.Hash())).
				Check(lic).
				HasValidSignature(key).
				IsNotBlocked().
				HasNotExpired()
			result = "valid"
			if !res.IsValid() {
				result = fmt.Sprintf("invalid (%s): %s", errors.KindOf(res.Err()), res.Err())
			}
		}
	}
	return writeToReportFile(filepath.Join(dir, "result.txt"), result+"\n")
}

func writeToReportFile(path, content string) error {
	reportFile, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %s ", err)
	}
	defer reportFile.Close()

	_, err = reportFile.WriteString(content)
	if err != nil {
		return fmt.Errorf("failed to save %s", path)
	}
	return nil
}

func copyFileToDir(src, dir string) error {
	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open: %s", src)
	}
	defer in.Close()

	realFileName := filepath.Base(in.Name())
	out, err := fs.Create(filepath.Join(dir, realFileName))
	if err != nil {
		return fmt.Errorf("failed to create: %s", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy file %s to %s", src, dir)
	}
	return nil
}

func tarDirectory(src, outPath string) error {
	out, err := fs.Create(outPath)
	if err != nil {
		return fmt.Errorf("open destination failed: %s", err)
	}
	defer out.Close()

	gzw := gzip.NewWriter(out)
	defer gzw.Close()

	tw := tar.NewWriter(gzw)
	defer tw.Close()

	return afero.Walk(fs, src, func(file string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		header, err := tar.FileInfoHeader(fi, fi.Name())
		if err != nil {
			return fmt.Errorf("make header %s", file)
		}

		relPath, err := filepath.Rel(src, file)
		if err != nil {
			return fmt.Errorf("get relative path %q: %w", file, err)
		}

		header.Name = filepath.Join("licensecheck-bug-info", relPath)
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write %s header", file)
		}

		// Only write contents if it's a file (i.e. not a directory).
		if !fi.Mode().IsRegular() {
			return nil
		}

		f, err := fs.Open(file)
		if err != nil {
			return fmt.Errorf("open %s", file)
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("copy %s", file)
		}
		return nil
	})
}
