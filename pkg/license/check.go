package license

import (
	"crypto/rsa"

	"github.com/kelda/licensecheck/pkg/errors"
	"github.com/kelda/licensecheck/pkg/machine"
)

// Result is the state of a chain of checks. It is either present, holding the
// license that passed every check so far, or absent, holding the first
// failure. Once absent, every further check is skipped and the result stays
// absent.
//
//	ok := license.Check(lic).
//		IsNotBlocked().
//		HasFeature(1).
//		HasNotExpired().
//		IsValid()
type Result struct {
	v       *Validator
	license *License
	err     error
}

// Then runs rule on the license if the result is present.
func (r Result) Then(rule Rule) Result {
	if r.license == nil {
		return r
	}

	v := r.validator()
	err := rule.run(r.license)
	v.observe(rule.Name, err)
	if err != nil {
		return Result{v: v, err: errors.WithContext(rule.Name, err)}
	}
	return r
}

func (r Result) HasValidSignature(key *rsa.PublicKey) Result {
	return r.Then(HasValidSignature(key))
}

func (r Result) HasFreshSignature(key *rsa.PublicKey, maxAgeDays int) Result {
	return r.Then(r.validator().HasFreshSignature(key, maxAgeDays))
}

func (r Result) HasNotExpired() Result {
	return r.Then(r.validator().HasNotExpired())
}

func (r Result) HasNotExpiredTrusted() Result {
	return r.Then(r.validator().HasNotExpiredTrusted())
}

func (r Result) HasFeature(n int) Result {
	return r.Then(HasFeature(n))
}

func (r Result) HasNotFeature(n int) Result {
	return r.Then(HasNotFeature(n))
}

// IsOnRightMachine checks the machine binding using the validator's default
// hash.
func (r Result) IsOnRightMachine() Result {
	return r.Then(r.validator().IsOnRightMachine(nil))
}

func (r Result) IsOnRightMachineWith(hash machine.HashFunc) Result {
	return r.Then(r.validator().IsOnRightMachine(hash))
}

func (r Result) IsBlocked() Result {
	return r.Then(IsBlocked())
}

func (r Result) IsNotBlocked() Result {
	return r.Then(IsNotBlocked())
}

// IsValid returns whether every check in the chain passed.
func (r Result) IsValid() bool {
	return r.license != nil
}

// IsValidAndGenuine is IsValid with a final signature check.
func (r Result) IsValidAndGenuine(key *rsa.PublicKey) bool {
	return r.HasValidSignature(key).IsValid()
}

// License returns the checked license, or nil if the result is absent.
func (r Result) License() *License {
	return r.license
}

// Err returns why the result is absent, or nil if it is present.
func (r Result) Err() error {
	if r.license != nil {
		return nil
	}
	if r.err == nil {
		return errors.WithContext(wellFormedCheck,
			errors.WithKind(errors.StructuralInvalid, errors.New("no license")))
	}
	return r.err
}

func (r Result) validator() *Validator {
	if r.v == nil {
		return defaultValidator
	}
	return r.v
}
