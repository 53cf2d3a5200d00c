package application

import "time"

// Clock interface supaya gampang ditest
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC, the zone sessions are stored in.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
