package machinecode

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kelda/licensecheck/pkg/config"
	"github.com/kelda/licensecheck/pkg/errors"
	"github.com/kelda/licensecheck/pkg/machine"
)

func New() *cobra.Command {
	var hashName string
	cmd := &cobra.Command{
		Use:   "machine-code",
		Short: "Print the machine code that licenses are activated against",
		Run: func(_ *cobra.Command, _ []string) {
			if hashName == "" {
				cfg, err := config.Load()
				if err != nil {
					errors.HandleFatalError(errors.WithContext("load config", err))
				}
				hashName = cfg.MachineHash
			}

			code, err := get(hashName)
			if err != nil {
				errors.HandleFatalError(err)
			}
			fmt.Println(code)
		},
	}

	cmd.Flags().StringVar(&hashName, "hash", "",
		"Hash used to derive the machine code: sha1 or sha256. Defaults to the configured hash.")
	return cmd
}

func get(hashName string) (string, error) {
	hash, err := machine.ParseHash(hashName)
	if err != nil {
		return "", err
	}

	code, err := machine.Code(hash)
	if err != nil {
		return "", errors.WithContext("get machine code", err)
	}
	return code, nil
}
