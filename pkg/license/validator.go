package license

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kelda/licensecheck/pkg/errors"
	"github.com/kelda/licensecheck/pkg/machine"
)

// TimeOracle reports whether the local clock has been tampered with, usually
// by comparing it against a trusted remote source.
type TimeOracle interface {
	Tampered() (bool, error)
}

// MachineCoder computes the fingerprint of the local machine using hash.
type MachineCoder func(hash machine.HashFunc) (string, error)

// Validator holds the collaborators that the clock and machine dependent
// checks need. It is immutable once built and safe for concurrent use.
type Validator struct {
	now         func() time.Time
	location    *time.Location
	oracle      TimeOracle
	machineCode MachineCoder
	hash        machine.HashFunc
	log         logrus.FieldLogger
	metrics     *Metrics
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// WithLocation sets the time zone in which "today" is computed. Defaults to
// UTC.
func WithLocation(loc *time.Location) Option {
	return func(v *Validator) {
		v.location = loc
	}
}

// WithTimeOracle sets the oracle consulted by HasNotExpiredTrusted.
func WithTimeOracle(oracle TimeOracle) Option {
	return func(v *Validator) {
		v.oracle = oracle
	}
}

// WithMachineCoder overrides how the local machine code is computed.
func WithMachineCoder(coder MachineCoder) Option {
	return func(v *Validator) {
		v.machineCode = coder
	}
}

// WithHashFunc sets the default hash used by IsOnRightMachine.
func WithHashFunc(hash machine.HashFunc) Option {
	return func(v *Validator) {
		v.hash = hash
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(v *Validator) {
		v.log = log
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(v *Validator) {
		v.metrics = metrics
	}
}

// NewValidator returns a validator that uses the system clock in UTC, the
// host's machine code hashed with SHA1, and no time oracle.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		now:         time.Now,
		location:    time.UTC,
		machineCode: machine.Code,
		hash:        machine.SHA1,
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

var defaultValidator = NewValidator()

// Check starts a chain of checks on l using the default validator.
func Check(l *License) Result {
	return defaultValidator.Check(l)
}

// Check starts a chain of checks on l. A nil license yields an absent result.
func (v *Validator) Check(l *License) Result {
	if l == nil {
		err := errors.WithKind(errors.StructuralInvalid, errors.New("no license"))
		v.observe(wellFormedCheck, err)
		return Result{v: v, err: errors.WithContext(wellFormedCheck, err)}
	}
	v.observe(wellFormedCheck, nil)
	return Result{v: v, license: l}
}

func (v *Validator) observe(check string, err error) {
	v.metrics.observe(check, err)
	if err != nil {
		v.log.WithFields(logrus.Fields{
			"check": check,
			"kind":  errors.KindOf(err).String(),
		}).WithError(err).Debug("License check failed")
	}
}

// today returns the current date in the validator's location, as midnight
// UTC so that day differences are exact.
func (v *Validator) today() time.Time {
	return v.date(v.now())
}

func (v *Validator) date(t time.Time) time.Time {
	y, m, d := t.In(v.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the number of whole days from `from` to `to`. Both must
// come from Validator.date.
func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
