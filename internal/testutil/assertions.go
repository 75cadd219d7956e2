package testutil

import (
	"errors"
	"testing"
	"time"

	apperrors "hisaab/internal/errors"
)

// AssertAppError fails the test unless err is an *AppError carrying code.
func AssertAppError(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *apperrors.AppError
	switch {
	case err == nil:
		t.Fatalf("expected AppError %s, got nil", code)
	case !errors.As(err, &appErr):
		t.Fatalf("expected AppError %s, got %T: %v", code, err, err)
	case appErr.Code != code:
		t.Errorf("expected AppError %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Eventually polls cond until it holds or timeout passes. Live snapshots are
// delivered asynchronously, so tests on subscribed state wait with it.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %s: %s", timeout, msg)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
