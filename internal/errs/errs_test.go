package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"pgregory.net/rapid"
)

var allCodes = []Code{
	InvalidArgument,
	NotFound,
	FailedPrecondition,
	AssertionFailed,
	Timeout,
	Unavailable,
	Canceled,
	Internal,
}

func testCodeOf_RoundtripForTypedErrors(t *rapid.T) {
	code := rapid.SampledFrom(allCodes).Draw(t, "code")
	message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "message")

	err := New(code, message)
	if got := CodeOf(err); got != code {
		t.Fatalf("CodeOf(New) mismatch: got=%q want=%q", got, code)
	}
	if got := MessageOf(err); got != message {
		t.Fatalf("MessageOf(New) mismatch: got=%q want=%q", got, message)
	}
}

func TestCodeOf_RoundtripForTypedErrors(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOf_RoundtripForTypedErrors)
}

func testCodeOfAndMessageOf_WrappedTypedError(t *rapid.T) {
	code := rapid.SampledFrom(allCodes).Draw(t, "code")
	message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "message")
	cause := errors.New(rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "cause"))

	err := Wrap(code, message, cause)
	wrapped := fmt.Errorf("outer: %w", err)

	if got := CodeOf(wrapped); got != code {
		t.Fatalf("CodeOf(wrapped) mismatch: got=%q want=%q", got, code)
	}
	if got := MessageOf(wrapped); got != message {
		t.Fatalf("MessageOf(wrapped) mismatch: got=%q want=%q", got, message)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("wrapped error lost its cause")
	}
}

func TestCodeOfAndMessageOf_WrappedTypedError(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOfAndMessageOf_WrappedTypedError)
}

func TestUntypedAndNilFallbacks(t *testing.T) {
	t.Parallel()

	untyped := errors.New("driver: socket closed")
	if got := CodeOf(untyped); got != Internal {
		t.Fatalf("CodeOf(untyped) mismatch: got=%q want=%q", got, Internal)
	}
	if got := MessageOf(untyped); got != "internal error" {
		t.Fatalf("MessageOf(untyped) mismatch: got=%q", got)
	}
	if got := CodeOf(nil); got != Internal {
		t.Fatalf("CodeOf(nil) mismatch: got=%q", got)
	}
}

func TestCodeOf_ContextErrors(t *testing.T) {
	t.Parallel()

	if got := CodeOf(fmt.Errorf("step: %w", context.Canceled)); got != Canceled {
		t.Fatalf("CodeOf(canceled) = %q", got)
	}
	if got := CodeOf(fmt.Errorf("step: %w", context.DeadlineExceeded)); got != Timeout {
		t.Fatalf("CodeOf(deadline) = %q", got)
	}
}

func TestHTTPStatus_Mapping(t *testing.T) {
	t.Parallel()

	cases := map[Code]int{
		InvalidArgument:     http.StatusBadRequest,
		NotFound:            http.StatusNotFound,
		FailedPrecondition:  http.StatusConflict,
		Timeout:             http.StatusGatewayTimeout,
		Unavailable:         http.StatusServiceUnavailable,
		Internal:            http.StatusInternalServerError,
		Code("unknown_code"): http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", code, got, want)
		}
	}
}

func TestExitCode_Mapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{New(AssertionFailed, "title mismatch"), ExitAssertion},
		{New(InvalidArgument, "bad url"), ExitInvalidConfig},
		{New(Unavailable, "no browser"), ExitUnavailable},
		{New(Timeout, "not clickable"), ExitElementProblems},
		{New(NotFound, "missing"), ExitElementProblems},
		{errors.New("boom"), ExitOther},
	}
	for _, tc := range cases {
		if got := ExitCode(tc.err); got != tc.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
