package diag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestErrorFormat(t *testing.T) {
	err := ErrorAt(SourceLoc{File: "a.td", Line: 3}, KindType, "bad %s", "thing")
	if got := err.Error(); got != "a.td:3: error: bad thing" {
		t.Errorf("unexpected message %q", got)
	}

	unlocated := Errorf(KindType, "oops")
	if got := unlocated.Error(); got != "error: oops" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestAtKeepsExistingLocation(t *testing.T) {
	first := SourceLoc{File: "a.td", Line: 1}
	err := At(first, Errorf(KindAssertionFailed, "x"))
	err = At(SourceLoc{File: "b.td", Line: 9}, err)
	if !strings.HasPrefix(err.Error(), "a.td:1:") {
		t.Errorf("expected first location to win, got %q", err.Error())
	}
}

func TestAtConvertsForeignErrors(t *testing.T) {
	err := At(SourceLoc{File: "x.td", Line: 2}, fmt.Errorf("plain"))
	if !IsKind(err, KindType) {
		t.Fatalf("expected TypeError, got %v", err)
	}
	if At(SourceLoc{}, nil) != nil {
		t.Error("At(nil) should stay nil")
	}
}

func TestKindOfThroughWrap(t *testing.T) {
	err := errors.Wrap(Errorf(KindCyclicFieldReference, "loop"), "resolving X")
	if !IsKind(err, KindCyclicFieldReference) {
		t.Errorf("expected kind to survive wrapping, got %v", err)
	}
	if _, ok := KindOf(fmt.Errorf("other")); ok {
		t.Error("foreign error should have no kind")
	}
}

func TestKindNames(t *testing.T) {
	if KindDagArgumentNotFound.String() != "DagArgumentNotFoundError" {
		t.Errorf("got %s", KindDagArgumentNotFound)
	}
	if Kind(99).String() != "Error" {
		t.Errorf("unknown kind should print as Error")
	}
}
