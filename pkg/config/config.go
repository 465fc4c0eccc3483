package config

import (
	"os"
	"time"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/kelda/licensecheck/pkg/cfgdir"
	"github.com/kelda/licensecheck/pkg/errors"
	"github.com/kelda/licensecheck/pkg/licensefile"
	"github.com/kelda/licensecheck/pkg/machine"
	"github.com/kelda/licensecheck/pkg/timecheck"
)

// EnvPath overrides the path of the config file.
const EnvPath = "LICENSECHECK_CONFIG"

// DefaultName is the config file's name within the config directory.
const DefaultName = "config.yaml"

var fs = afero.NewOsFs()

type Config struct {
	// PublicKeyFile holds the issuer's RSA public key, in PEM or XML form.
	PublicKeyFile string `json:"publicKeyFile"`

	// LicenseFile is the license checked when no file is given explicitly.
	LicenseFile string `json:"licenseFile"`

	// SignatureMaxAgeDays rejects licenses signed this many days ago or
	// earlier. Zero disables the check.
	SignatureMaxAgeDays int `json:"signatureMaxAgeDays"`

	// TimeServer is queried to detect a tampered local clock.
	TimeServer           string `json:"timeServer"`
	TimeToleranceMinutes int    `json:"timeToleranceMinutes"`

	// MachineHash is the hash used for machine codes: sha1 or sha256.
	MachineHash string `json:"machineHash"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		PublicKeyFile:        cfgdir.Expand("public.pem"),
		LicenseFile:          cfgdir.Expand(licensefile.DefaultName),
		TimeServer:           timecheck.DefaultURL,
		TimeToleranceMinutes: int(timecheck.DefaultTolerance / time.Minute),
		MachineHash:          "sha1",
	}
}

// Path returns the path of the config file.
func Path() string {
	if path, ok := os.LookupEnv(EnvPath); ok && path != "" {
		return path
	}
	return cfgdir.Expand(DefaultName)
}

// Load reads the config file at Path. Fields missing from the file keep their
// default values, and a missing file yields Default.
func Load() (Config, error) {
	return load(Path())
}

func load(path string) (Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, errors.WithContext("read config", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.NewFriendlyError("Failed to parse config file (%s)\nError: %s", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.WithContext(path, err)
	}
	return cfg, nil
}

// Validate checks for values that can never work.
func (cfg Config) Validate() error {
	if cfg.SignatureMaxAgeDays < 0 {
		return errors.NewFriendlyError("signatureMaxAgeDays must not be negative, got %d", cfg.SignatureMaxAgeDays)
	}
	if cfg.TimeToleranceMinutes < 0 {
		return errors.NewFriendlyError("timeToleranceMinutes must not be negative, got %d", cfg.TimeToleranceMinutes)
	}
	if _, err := machine.ParseHash(cfg.MachineHash); err != nil {
		return err
	}
	return nil
}

// Hash returns the configured machine code hash.
func (cfg Config) Hash() machine.HashFunc {
	hash, err := machine.ParseHash(cfg.MachineHash)
	if err != nil {
		return machine.SHA1
	}
	return hash
}

// TimeOracle returns the time oracle described by the config.
func (cfg Config) TimeOracle() timecheck.HTTPDate {
	return timecheck.HTTPDate{
		URL:       cfg.TimeServer,
		Tolerance: time.Duration(cfg.TimeToleranceMinutes) * time.Minute,
	}
}
