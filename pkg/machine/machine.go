package machine

import (
	"crypto/sha1" // nolint: gosec
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/kelda/licensecheck/pkg/errors"
)

// HashFunc is a one-way hash from the raw machine identifiers to a machine
// code.
type HashFunc func(string) string

// SHA1 is the default machine code hash.
func SHA1(s string) string {
	sum := sha1.Sum([]byte(s)) // nolint: gosec
	return hex.EncodeToString(sum[:])
}

func SHA256(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ParseHash returns the hash function with the given name.
func ParseHash(name string) (HashFunc, error) {
	switch strings.ToLower(name) {
	case "", "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	default:
		return nil, errors.NewFriendlyError("Unknown machine code hash %q. Use sha1 or sha256.", name)
	}
}

// hostInfo is a variable so that tests can fake the host.
var hostInfo = host.Info

// Code returns the machine code of the local host: hash applied to the
// host's stable identifiers. The hostname and OS version are left out since
// they change without the hardware changing.
func Code(hash HashFunc) (string, error) {
	raw, err := identifiers()
	if err != nil {
		return "", err
	}
	return hash(raw), nil
}

func identifiers() (string, error) {
	info, err := hostInfo()
	if err != nil {
		return "", errors.WithContext("get host info", err)
	}

	if info.HostID == "" {
		return "", errors.New("host has no stable identifier")
	}

	return strings.Join([]string{
		info.HostID,
		info.OS,
		info.Platform,
		info.KernelArch,
	}, "|"), nil
}
