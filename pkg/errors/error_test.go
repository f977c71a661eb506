package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestNewCarriesCodeAndMessage(t *testing.T) {
	err := Newf(SubmissionNotFound, "submission %s not found", "s1")
	if GetCode(err) != SubmissionNotFound {
		t.Fatalf("code = %d", GetCode(err))
	}
	if !strings.Contains(err.Error(), "s1") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrapf(cause, ScratchSpaceError, "write source failed")
	if GetCode(err) != ScratchSpaceError {
		t.Fatalf("code = %d", GetCode(err))
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("wrapped cause lost")
	}
}

func TestGetCodeForeignError(t *testing.T) {
	if GetCode(stderrors.New("plain")) != InternalServerError {
		t.Fatal("foreign error did not map to InternalServerError")
	}
	if GetCode(nil) != Success {
		t.Fatal("nil error did not map to Success")
	}
}

func TestIsMatchesCode(t *testing.T) {
	err := Newf(JudgeQueueFull, "full")
	if !Is(err, JudgeQueueFull) {
		t.Fatal("Is did not match code")
	}
	if Is(err, SubmissionInFlight) {
		t.Fatal("Is matched wrong code")
	}
	if Is(nil, JudgeQueueFull) {
		t.Fatal("Is matched nil error")
	}
}

func TestWithMessageKeepsCode(t *testing.T) {
	err := Newf(PacketInvalid, "bad packet").WithMessagef("language %q", "go")
	if GetCode(err) != PacketInvalid {
		t.Fatalf("code = %d, want PacketInvalid", GetCode(err))
	}
	if !strings.Contains(err.Error(), "go") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError("dsn", "required")
	if GetCode(err) != ValidationFailed {
		t.Fatalf("code = %d", GetCode(err))
	}
	if err.Details["field"] != "dsn" || err.Details["reason"] != "required" {
		t.Fatalf("details = %v", err.Details)
	}
}
