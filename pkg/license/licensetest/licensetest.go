// Package licensetest provides signed license fixtures for tests.
package licensetest

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/kelda/licensecheck/pkg/license"
)

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
	keyErr  error
)

// Key returns a 2048 bit key that is generated once per test binary.
func Key(t testing.TB) *rsa.PrivateKey {
	keyOnce.Do(func() {
		key, keyErr = rsa.GenerateKey(rand.Reader, license.MinKeyBits)
	})
	if keyErr != nil {
		t.Fatalf("generate key: %s", keyErr)
	}
	return key
}

// Unsigned returns a fully populated license without a signature.
func Unsigned() *license.License {
	created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	return &license.License{
		ProductID: 3349,
		ID:        42,
		Key:       "ITVBC-GXXNU-GSMTK-NIJBT",
		Created:   created,
		Expires:   time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC),
		Period:    30,
		F1:        true,
		F3:        true,
		Notes:     "issued for testing",
		GlobalID:  8812377,
		Customer: &license.Customer{
			ID:          7,
			Name:        "Ada Lovelace",
			Email:       "ada@example.com",
			CompanyName: "Analytical Engines",
			Created:     created,
		},
		ActivatedMachines: []license.Machine{
			{Mid: "machine-a", IP: "10.0.0.1", Time: created},
			{Mid: "machine-b", IP: "10.0.0.2", Time: created.Add(time.Hour)},
		},
		MaxNoOfMachines: 2,
		AllowedMachines: "machine-a;machine-b",
		DataObjects: license.DataObjects{
			{ID: 1, Name: "seats", IntValue: 10},
			{ID: 2, Name: "edition", StringValue: "pro"},
		},
		SignDate: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
	}
}

// Sign signs lic in place with Key and returns it.
func Sign(t testing.TB, lic *license.License) *license.License {
	sig, err := license.Sign(lic, Key(t))
	if err != nil {
		t.Fatalf("sign license: %s", err)
	}
	lic.Signature = sig
	return lic
}

// Signed returns Unsigned after applying mutate, signed with Key.
func Signed(t testing.TB, mutate func(*license.License)) *license.License {
	lic := Unsigned()
	if mutate != nil {
		mutate(lic)
	}
	return Sign(t, lic)
}

// PublicKey returns the public half of Key.
func PublicKey(t testing.TB) *rsa.PublicKey {
	return &Key(t).PublicKey
}
