package bugtool

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelda/licensecheck/pkg/config"
	"github.com/kelda/licensecheck/pkg/license"
	"github.com/kelda/licensecheck/pkg/license/licensetest"
	"github.com/kelda/licensecheck/pkg/licensefile"
	"github.com/kelda/licensecheck/pkg/machine"
	"github.com/kelda/licensecheck/pkg/version"
)

func setup(t *testing.T) config.Config {
	fs = afero.NewMemMapFs()
	machineCode = func(machine.HashFunc) (string, error) {
		return "machine-a", nil
	}

	keyPEM, err := license.MarshalPublicKeyPEM(licensetest.PublicKey(t))
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/keys/public.pem", keyPEM, 0644))
	require.NoError(t, licensefile.Save(fs, "/valid.json", licensetest.Signed(t, nil)))
	require.NoError(t, licensefile.Save(fs, "/blocked.json", licensetest.Signed(t, func(l *license.License) {
		l.Block = true
	})))

	cfg := config.Default()
	cfg.PublicKeyFile = "/keys/public.pem"
	return cfg
}

func readArchive(t *testing.T, path string) map[string]string {
	f, err := fs.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	require.NoError(t, err)

	files := map[string]string{}
	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		contents, err := ioutil.ReadAll(tr)
		require.NoError(t, err)
		files[header.Name] = string(contents)
	}
	return files
}

func TestRun(t *testing.T) {
	cfg := setup(t)
	require.NoError(t, run(cfg, []string{"/valid.json", "/blocked.json", "/missing.json"}, "/bug.tar.gz"))

	files := readArchive(t, "/bug.tar.gz")
	assert.Equal(t, version.Version, files["licensecheck-bug-info/version.txt"])
	assert.Equal(t, "hash: sha1\ncode: machine-a\n", files["licensecheck-bug-info/machine-code.txt"])
	assert.Contains(t, files["licensecheck-bug-info/config.yaml"], "publicKeyFile: /keys/public.pem")

	assert.Equal(t, "valid\n", files["licensecheck-bug-info/license-0/result.txt"])
	assert.Contains(t, files["licensecheck-bug-info/license-0/canonical.txt"], "key=ITVBC-GXXNU-GSMTK-NIJBT\n")
	assert.NotContains(t, files["licensecheck-bug-info/license-0/canonical.txt"], "signature=")
	assert.Contains(t, files, "licensecheck-bug-info/license-0/valid.json")

	assert.Equal(t, "invalid (policy): is not blocked: license is blocked\n",
		files["licensecheck-bug-info/license-1/result.txt"])

	// The missing license is skipped, but doesn't abort the report.
	assert.NotContains(t, files, "licensecheck-bug-info/license-2/result.txt")

	// The temporary report directory is cleaned up.
	dirs, err := afero.Glob(fs, filepath.Join(os.TempDir(), "licensecheck-bug-tool*"))
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestRunNoKey(t *testing.T) {
	cfg := setup(t)
	cfg.PublicKeyFile = "/keys/missing.pem"
	machineCode = func(machine.HashFunc) (string, error) {
		return "", errors.New("no host id")
	}

	require.NoError(t, run(cfg, []string{"/valid.json"}, "/bug.tar.gz"))

	files := readArchive(t, "/bug.tar.gz")
	assert.Equal(t, "key not available\n", files["licensecheck-bug-info/license-0/result.txt"])
	assert.Equal(t, "hash: sha1\ncode: unavailable: no host id\n",
		files["licensecheck-bug-info/machine-code.txt"])
}
