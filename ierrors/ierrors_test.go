package ierrors

import (
	"errors"
	"testing"
)

func TestWrapPreservesKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrUpstreamUnavailable, cause)

	if KindOf(err) != KindTransient {
		t.Fatalf("KindOf = %v, want transient", KindOf(err))
	}
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatal("errors.Is should match the sentinel")
	}
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is should find the wrapped cause via Unwrap")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrUpstreamUnavailable) {
		t.Error("ErrUpstreamUnavailable should be retryable")
	}
	if !IsRetryable(ErrMalformedBlock) {
		t.Error("ErrMalformedBlock should be retryable")
	}
	if IsRetryable(ErrReorgTooDeep) {
		t.Error("ErrReorgTooDeep should not be retryable")
	}
	if IsRetryable(ErrStorageFailure) {
		t.Error("ErrStorageFailure should not be retryable")
	}
	if IsRetryable(ErrNotFound) {
		t.Error("ErrNotFound should not be retryable")
	}
}

func TestKindOfUnknownErrorIsFatal(t *testing.T) {
	if KindOf(errors.New("boom")) != KindFatal {
		t.Error("an error outside the taxonomy should be treated as fatal")
	}
}

func TestDistinctSentinelsDoNotMatch(t *testing.T) {
	if errors.Is(ErrInvalidMonic, ErrInvalidChecksum) {
		t.Error("distinct sentinels must not match under errors.Is")
	}
}
