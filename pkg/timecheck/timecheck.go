package timecheck

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kelda/licensecheck/pkg/errors"
)

const (
	// DefaultURL is queried when HTTPDate.URL is empty.
	DefaultURL = "https://www.google.com"

	// DefaultTolerance is how far the local clock may drift from the remote
	// clock before it is considered tampered with.
	DefaultTolerance = 24 * time.Hour

	defaultTimeout = 10 * time.Second
)

// HTTPDate detects a tampered local clock by comparing it with the Date
// header returned by a trusted HTTPS server.
type HTTPDate struct {
	URL       string
	Tolerance time.Duration
	Client    *http.Client

	// Now defaults to time.Now.
	Now func() time.Time
}

// Tampered returns true if the local clock differs from the remote clock by
// more than the tolerance.
func (c HTTPDate) Tampered() (bool, error) {
	remote, err := c.remoteTime()
	if err != nil {
		return false, err
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	tolerance := c.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	drift := now().Sub(remote)
	if drift < 0 {
		drift = -drift
	}

	if drift > tolerance {
		log.WithFields(log.Fields{
			"remote": remote,
			"drift":  drift,
		}).Warn("Local clock differs from remote clock")
		return true, nil
	}
	return false, nil
}

func (c HTTPDate) remoteTime() (time.Time, error) {
	url := c.URL
	if url == "" {
		url = DefaultURL
	}

	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	resp, err := client.Head(url)
	if err != nil {
		return time.Time{}, errors.WithContext("query time server", err)
	}
	resp.Body.Close()

	date := resp.Header.Get("Date")
	if date == "" {
		return time.Time{}, errors.New("time server %s returned no Date header", url)
	}

	remote, err := http.ParseTime(date)
	if err != nil {
		return time.Time{}, errors.WithContext("parse Date header", err)
	}
	return remote, nil
}
