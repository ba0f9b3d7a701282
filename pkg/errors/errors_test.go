package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("complete check-in 42: %w", CheckInAlreadyResponded)

	if got := KindOf(wrapped); got != KindConflict {
		t.Fatalf("expected conflict, got %s", got)
	}
	if !stderrors.Is(wrapped, CheckInAlreadyResponded) {
		t.Fatalf("errors.Is should match the wrapped definition")
	}
	if KindOf(stderrors.New("boom")) != KindInternal {
		t.Fatalf("plain errors should be internal")
	}
}

func TestLookupCoversDefinitions(t *testing.T) {
	for code, def := range Lookup {
		if def.Code != code {
			t.Errorf("lookup key %s points at %s", code, def.Code)
		}
		if def.Message == "" {
			t.Errorf("%s has no message", code)
		}
	}

	if got := Get("NOPE"); got.Code != "NOPE" || got.Kind != KindInternal {
		t.Fatalf("unexpected fallback definition %+v", got)
	}
}

func TestIsSkipMessageError(t *testing.T) {
	if !IsSkipMessageError(fmt.Errorf("msg_1: %w", SkipMessageError)) {
		t.Fatalf("wrapped skip error not detected")
	}
	if IsSkipMessageError(GoalNotFound) {
		t.Fatalf("definition misdetected as skip")
	}
}
