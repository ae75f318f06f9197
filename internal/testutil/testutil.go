// Package testutil provides shared helpers for shellmux tests.
//
// Most of the codebase is asynchronous around a PTY stream, so tests spend
// their time waiting for a condition to become true rather than asserting
// immediately. The helpers here poll with a short sleep instead of a fixed
// wait, keeping tests fast when things go well and bounded when they don't.
package testutil

import (
	"testing"
	"time"
)

// pollStep is the sleep between condition checks.
const pollStep = 2 * time.Millisecond

// Eventually polls cond until it returns true or the timeout passes, and
// reports whether it ever held.
func Eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(pollStep)
	}
	return cond()
}

// RequireEventually fails the test when cond never holds within the timeout.
func RequireEventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	if !Eventually(timeout, cond) {
		t.Fatal(msg)
	}
}

// RequireNever verifies cond stays false for the whole duration; use it for
// "nothing arrives" assertions that would otherwise be a bare sleep.
func RequireNever(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatal(msg)
		}
		time.Sleep(pollStep)
	}
}
