package license

import (
	"crypto/rsa"

	"github.com/kelda/licensecheck/pkg/errors"
	"github.com/kelda/licensecheck/pkg/machine"
)

const (
	wellFormedCheck     = "well formed"
	validSignatureCheck = "has valid signature"
	freshSignatureCheck = "has fresh signature"
	notExpiredCheck     = "has not expired"
	trustedTimeCheck    = "has not expired (trusted time)"
	featureCheck        = "has feature"
	notFeatureCheck     = "has not feature"
	rightMachineCheck   = "is on right machine"
	blockedCheck        = "is blocked"
	notBlockedCheck     = "is not blocked"
)

// A Rule is a single named check. Test returns nil if the license passes.
type Rule struct {
	Name string
	Test func(*License) error
}

// Apply runs the rule on its own: it returns l if l passes and nil otherwise.
// A nil license always yields nil.
func (rule Rule) Apply(l *License) *License {
	if l == nil || rule.run(l) != nil {
		return nil
	}
	return l
}

func (rule Rule) run(l *License) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WithKind(errors.StructuralInvalid, errors.New("check panicked: %v", r))
		}
	}()
	return rule.Test(l)
}

func policyError(f string, args ...interface{}) error {
	return errors.WithKind(errors.PolicyViolation, errors.New(f, args...))
}

// HasValidSignature passes if the license's signature verifies under key.
func HasValidSignature(key *rsa.PublicKey) Rule {
	return Rule{
		Name: validSignatureCheck,
		Test: func(l *License) error {
			return Verify(l, key)
		},
	}
}

// HasFeature passes if feature flag n is set. Numbers outside [1, 8] never
// pass.
func HasFeature(n int) Rule {
	return Rule{
		Name: featureCheck,
		Test: func(l *License) error {
			value, ok := l.Feature(n)
			if !ok {
				return errors.WithKind(errors.StructuralInvalid,
					errors.New("feature %d is out of range", n))
			}
			if !value {
				return policyError("feature %d is not enabled", n)
			}
			return nil
		},
	}
}

// HasNotFeature passes if feature flag n is unset. Numbers outside [1, 8]
// never pass.
func HasNotFeature(n int) Rule {
	return Rule{
		Name: notFeatureCheck,
		Test: func(l *License) error {
			value, ok := l.Feature(n)
			if !ok {
				return errors.WithKind(errors.StructuralInvalid,
					errors.New("feature %d is out of range", n))
			}
			if value {
				return policyError("feature %d is enabled", n)
			}
			return nil
		},
	}
}

func IsBlocked() Rule {
	return Rule{
		Name: blockedCheck,
		Test: func(l *License) error {
			if !l.Block {
				return policyError("license is not blocked")
			}
			return nil
		},
	}
}

func IsNotBlocked() Rule {
	return Rule{
		Name: notBlockedCheck,
		Test: func(l *License) error {
			if l.Block {
				return policyError("license is blocked")
			}
			return nil
		},
	}
}

// HasNotExpired passes if the expiry date is today or later. Only the dates
// are compared, so a license expiring today is still valid all day.
func (v *Validator) HasNotExpired() Rule {
	return Rule{
		Name: notExpiredCheck,
		Test: v.checkNotExpired,
	}
}

// HasNotExpiredTrusted is HasNotExpired, but additionally fails if the time
// oracle reports that the local clock was tampered with, or cannot be asked.
func (v *Validator) HasNotExpiredTrusted() Rule {
	return Rule{
		Name: trustedTimeCheck,
		Test: func(l *License) error {
			if err := v.checkNotExpired(l); err != nil {
				return err
			}

			if v.oracle == nil {
				return errors.WithKind(errors.ExternalSignal,
					errors.New("no time oracle configured"))
			}

			tampered, err := v.oracle.Tampered()
			if err != nil {
				return errors.WithKind(errors.ExternalSignal,
					errors.WithContext("check time", err))
			}
			if tampered {
				return errors.WithKind(errors.ExternalSignal,
					errors.New("local clock has been tampered with"))
			}
			return nil
		},
	}
}

func (v *Validator) checkNotExpired(l *License) error {
	expires := v.date(l.Expires)
	if daysBetween(v.today(), expires) < 0 {
		return policyError("expired on %s", expires.Format("2006-01-02"))
	}
	return nil
}

// HasFreshSignature passes if the signature is valid and fewer than maxAgeDays
// days have passed since the license was signed.
func (v *Validator) HasFreshSignature(key *rsa.PublicKey, maxAgeDays int) Rule {
	return Rule{
		Name: freshSignatureCheck,
		Test: func(l *License) error {
			if err := Verify(l, key); err != nil {
				return err
			}

			age := daysBetween(v.date(l.SignDate), v.today())
			if age >= maxAgeDays {
				return policyError("signed %d days ago, the limit is %d", age, maxAgeDays)
			}
			return nil
		},
	}
}

// IsOnRightMachine passes if any activated machine's code equals the local
// machine code computed with hash. A nil hash uses the validator's default.
func (v *Validator) IsOnRightMachine(hash machine.HashFunc) Rule {
	if hash == nil {
		hash = v.hash
	}

	return Rule{
		Name: rightMachineCheck,
		Test: func(l *License) error {
			if len(l.ActivatedMachines) == 0 {
				return policyError("license is not activated on any machine")
			}

			code, err := v.machineCode(hash)
			if err != nil {
				return errors.WithKind(errors.ExternalSignal,
					errors.WithContext("get machine code", err))
			}

			for _, m := range l.ActivatedMachines {
				if m.Mid != "" && m.Mid == code {
					return nil
				}
			}
			return policyError("license is not activated on this machine")
		},
	}
}
