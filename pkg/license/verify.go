package license

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"

	"github.com/kelda/licensecheck/pkg/errors"
)

// Verify checks that l.Signature is a valid RSA PKCS#1 v1.5 SHA-256 signature
// over Canonical(l). Records holding strings that aren't valid UTF-8 are
// rejected. The record is never modified, so Verify is safe to call
// concurrently, including on the same record.
func Verify(l *License, key *rsa.PublicKey) (err error) {
	if l == nil {
		return errors.WithKind(errors.StructuralInvalid, errors.New("no license"))
	}
	if err := checkEncoding(l); err != nil {
		return err
	}
	if l.Signature == "" {
		return errors.WithKind(errors.CryptoInvalid, errors.New("license is not signed"))
	}
	if key == nil || key.N == nil {
		return errors.WithKind(errors.CryptoInvalid, errors.New("no public key"))
	}

	// A malformed key can make the rsa package panic.
	defer func() {
		if r := recover(); r != nil {
			err = errors.WithKind(errors.CryptoInvalid, errors.New("verify signature: %v", r))
		}
	}()

	sig, err := base64.StdEncoding.DecodeString(l.Signature)
	if err != nil {
		return errors.WithKind(errors.CryptoInvalid, errors.WithContext("decode signature", err))
	}

	digest := sha256.Sum256(Canonical(l))
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig); err != nil {
		return errors.WithKind(errors.CryptoInvalid, errors.WithContext("verify signature", err))
	}
	return nil
}

// IsGenuine returns whether l carries a valid signature under key.
func IsGenuine(l *License, key *rsa.PublicKey) bool {
	return Verify(l, key) == nil
}

// Sign returns the base64 signature over Canonical(l). The existing
// signature, if any, does not affect the result.
func Sign(l *License, key *rsa.PrivateKey) (string, error) {
	if l == nil {
		return "", errors.New("no license")
	}
	if err := checkEncoding(l); err != nil {
		return "", err
	}

	digest := sha256.Sum256(Canonical(l))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", errors.WithContext("sign license", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
