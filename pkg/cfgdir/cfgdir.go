package cfgdir

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
)

// EnvDir overrides the configuration directory.
const EnvDir = "LICENSECHECK_DIR"

var dir string

func init() {
	if override, ok := os.LookupEnv(EnvDir); ok && override != "" {
		dir = override
		return
	}

	var err error
	dir, err = homedir.Expand("~/.licensecheck")
	if err != nil {
		log.WithError(err).Fatal("can't find home directory")
	}
}

func Expand(filename string) string {
	return filepath.Join(dir, filename)
}
