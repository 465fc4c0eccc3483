package license_test

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelda/licensecheck/pkg/errors"
	"github.com/kelda/licensecheck/pkg/license"
	"github.com/kelda/licensecheck/pkg/license/licensetest"
)

func TestVerify(t *testing.T) {
	lic := licensetest.Signed(t, nil)
	key := licensetest.PublicKey(t)

	assert.NoError(t, license.Verify(lic, key))
	assert.True(t, license.IsGenuine(lic, key))
}

func TestVerifyIsIdempotent(t *testing.T) {
	lic := licensetest.Signed(t, nil)
	key := licensetest.PublicKey(t)
	sig := lic.Signature
	canonical := license.Canonical(lic)

	for i := 0; i < 2; i++ {
		assert.NoError(t, license.Verify(lic, key))
		assert.Equal(t, sig, lic.Signature)
		assert.Equal(t, canonical, license.Canonical(lic))
	}

	bad := licensetest.Signed(t, nil)
	bad.Signature = flipFirstChar(bad.Signature)
	badSig := bad.Signature
	for i := 0; i < 2; i++ {
		assert.Error(t, license.Verify(bad, key))
		assert.Equal(t, badSig, bad.Signature)
	}
}

func TestVerifyConcurrentSameRecord(t *testing.T) {
	lic := licensetest.Signed(t, nil)
	key := licensetest.PublicKey(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = license.Verify(lic, key)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(*license.License)
	}{
		{"productId", func(l *license.License) { l.ProductID++ }},
		{"id", func(l *license.License) { l.ID++ }},
		{"key", func(l *license.License) { l.Key += "X" }},
		{"created", func(l *license.License) { l.Created = l.Created.Add(time.Second) }},
		{"expires", func(l *license.License) { l.Expires = l.Expires.AddDate(0, 0, 1) }},
		{"period", func(l *license.License) { l.Period++ }},
		{"f1", func(l *license.License) { l.F1 = !l.F1 }},
		{"f2", func(l *license.License) { l.F2 = !l.F2 }},
		{"f3", func(l *license.License) { l.F3 = !l.F3 }},
		{"f4", func(l *license.License) { l.F4 = !l.F4 }},
		{"f5", func(l *license.License) { l.F5 = !l.F5 }},
		{"f6", func(l *license.License) { l.F6 = !l.F6 }},
		{"f7", func(l *license.License) { l.F7 = !l.F7 }},
		{"f8", func(l *license.License) { l.F8 = !l.F8 }},
		{"notes", func(l *license.License) { l.Notes = "" }},
		{"block", func(l *license.License) { l.Block = !l.Block }},
		{"globalId", func(l *license.License) { l.GlobalID++ }},
		{"customer name", func(l *license.License) { l.Customer.Name = "Eve" }},
		{"customer removed", func(l *license.License) { l.Customer = nil }},
		{"machine added", func(l *license.License) {
			l.ActivatedMachines = append(l.ActivatedMachines, license.Machine{Mid: "machine-c"})
		}},
		{"machine changed", func(l *license.License) { l.ActivatedMachines[0].Mid = "machine-z" }},
		{"trialActivation", func(l *license.License) { l.TrialActivation = !l.TrialActivation }},
		{"maxNoOfMachines", func(l *license.License) { l.MaxNoOfMachines++ }},
		{"allowedMachines", func(l *license.License) { l.AllowedMachines = "*" }},
		{"data object value", func(l *license.License) { l.DataObjects[0].IntValue = 1000 }},
		{"data objects reordered", func(l *license.License) {
			l.DataObjects[0], l.DataObjects[1] = l.DataObjects[1], l.DataObjects[0]
		}},
		{"signDate", func(l *license.License) { l.SignDate = l.SignDate.AddDate(0, 0, 1) }},
	}

	key := licensetest.PublicKey(t)
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			lic := licensetest.Signed(t, nil)
			require.NoError(t, license.Verify(lic, key))

			test.tamper(lic)
			err := license.Verify(lic, key)
			assert.Error(t, err)
			assert.Equal(t, errors.CryptoInvalid, errors.KindOf(err))
		})
	}
}

func TestVerifyFailures(t *testing.T) {
	otherKey, err := rsa.GenerateKey(rand.Reader, license.MinKeyBits)
	require.NoError(t, err)

	tests := []struct {
		name    string
		lic     *license.License
		key     *rsa.PublicKey
		expKind errors.Kind
	}{
		{
			name:    "nil license",
			lic:     nil,
			key:     licensetest.PublicKey(t),
			expKind: errors.StructuralInvalid,
		},
		{
			name:    "unsigned",
			lic:     licensetest.Unsigned(),
			key:     licensetest.PublicKey(t),
			expKind: errors.CryptoInvalid,
		},
		{
			name:    "nil key",
			lic:     licensetest.Signed(t, nil),
			key:     nil,
			expKind: errors.CryptoInvalid,
		},
		{
			name:    "empty key",
			lic:     licensetest.Signed(t, nil),
			key:     &rsa.PublicKey{},
			expKind: errors.CryptoInvalid,
		},
		{
			name:    "wrong key",
			lic:     licensetest.Signed(t, nil),
			key:     &otherKey.PublicKey,
			expKind: errors.CryptoInvalid,
		},
		{
			name: "malformed base64",
			lic: func() *license.License {
				l := licensetest.Signed(t, nil)
				l.Signature = "not base64!"
				return l
			}(),
			key:     licensetest.PublicKey(t),
			expKind: errors.CryptoInvalid,
		},
		{
			name: "truncated signature",
			lic: func() *license.License {
				l := licensetest.Signed(t, nil)
				l.Signature = l.Signature[:len(l.Signature)/2]
				return l
			}(),
			key:     licensetest.PublicKey(t),
			expKind: errors.CryptoInvalid,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var err error
			assert.NotPanics(t, func() {
				err = license.Verify(test.lic, test.key)
			})
			assert.Error(t, err)
			assert.Equal(t, test.expKind, errors.KindOf(err))
			assert.False(t, license.IsGenuine(test.lic, test.key))
		})
	}
}

func TestVerifyRejectsInvalidUTF8(t *testing.T) {
	key := licensetest.Key(t)

	tests := []struct {
		name   string
		mutate func(l *license.License, b string)
	}{
		{"data object value", func(l *license.License, b string) { l.DataObjects[1].StringValue = b }},
		{"data object name", func(l *license.License, b string) { l.DataObjects[0].Name = b }},
		{"machine ip", func(l *license.License, b string) { l.ActivatedMachines[0].IP = b }},
		{"machine id", func(l *license.License, b string) { l.ActivatedMachines[1].Mid = b }},
		{"customer name", func(l *license.License, b string) { l.Customer.Name = b }},
		{"notes", func(l *license.License, b string) { l.Notes = b }},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			unsigned := licensetest.Unsigned()
			test.mutate(unsigned, "\xff")
			_, err := license.Sign(unsigned, key)
			if assert.Error(t, err) {
				assert.Equal(t, errors.StructuralInvalid, errors.KindOf(err))
			}

			// Swapping one invalid byte for another must not keep a record
			// genuine, even though JSON encodes both as U+FFFD.
			for _, b := range []string{"\xff", "\xfd"} {
				lic := licensetest.Signed(t, nil)
				test.mutate(lic, b)
				err := license.Verify(lic, &key.PublicKey)
				if assert.Error(t, err) {
					assert.Equal(t, errors.StructuralInvalid, errors.KindOf(err))
				}
				assert.False(t, license.Check(lic).HasValidSignature(&key.PublicKey).IsValid())
			}
		})
	}
}

func TestSignIgnoresExistingSignature(t *testing.T) {
	key := licensetest.Key(t)
	lic := licensetest.Unsigned()
	lic.Signature = "c3RhbGU="

	sig, err := license.Sign(lic, key)
	require.NoError(t, err)
	lic.Signature = sig
	assert.NoError(t, license.Verify(lic, &key.PublicKey))

	_, err = license.Sign(nil, key)
	assert.Error(t, err)
}

func flipFirstChar(s string) string {
	if s[0] == 'A' {
		return "B" + s[1:]
	}
	return "A" + s[1:]
}
