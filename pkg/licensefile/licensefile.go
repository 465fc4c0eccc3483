package licensefile

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/kelda/licensecheck/pkg/errors"
	"github.com/kelda/licensecheck/pkg/license"
)

// DefaultName is the file name used when the configuration doesn't specify
// one.
const DefaultName = "license.json"

// Load reads a license from path. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON. The signature is not checked.
func Load(fs afero.Fs, path string) (*license.License, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.WithContext("read license file", err)
	}

	var lic license.License
	if isYAML(path) {
		err = yaml.Unmarshal(data, &lic)
	} else {
		err = json.Unmarshal(data, &lic)
	}
	if err != nil {
		return nil, errors.NewFriendlyError("Failed to parse license file (%s)\nError: %s", path, err)
	}
	return &lic, nil
}

// Save writes lic to path, in the format implied by the file extension.
func Save(fs afero.Fs, path string, lic *license.License) error {
	if lic == nil {
		return errors.New("no license to save")
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(lic)
	} else {
		data, err = json.MarshalIndent(lic, "", "  ")
	}
	if err != nil {
		return errors.WithContext("marshal license", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return errors.WithContext("create license directory", err)
		}
	}

	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return errors.WithContext("write license file", err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
