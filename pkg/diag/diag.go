// Package diag defines source locations and the fatal error kinds reported
// by every stage of the record processor.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// SourceLoc represents a position in an original (pre-inclusion) source file.
type SourceLoc struct {
	File   string
	Line   int
	Column int
}

// IsZero reports whether the location carries no information.
func (l SourceLoc) IsZero() bool {
	return l.File == "" && l.Line == 0
}

func (l SourceLoc) String() string {
	if l.File == "" {
		return fmt.Sprintf("line %d", l.Line)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Kind classifies a fatal error.
type Kind int

const (
	KindSyntax Kind = iota
	KindPreprocess
	KindDuplicateSymbol
	KindUnboundTemplateArgument
	KindCyclicFieldReference
	KindType
	KindDagArgumentNotFound
	KindIncompatibleDagOperator
	KindAssertionFailed
	KindUndefinedSymbol
)

var kindNames = map[Kind]string{
	KindSyntax:                  "SyntaxError",
	KindPreprocess:              "PreprocessError",
	KindDuplicateSymbol:         "DuplicateSymbolError",
	KindUnboundTemplateArgument: "UnboundTemplateArgumentError",
	KindCyclicFieldReference:    "CyclicFieldReferenceError",
	KindType:                    "TypeError",
	KindDagArgumentNotFound:     "DagArgumentNotFoundError",
	KindIncompatibleDagOperator: "IncompatibleDagOperatorError",
	KindAssertionFailed:         "AssertionFailedError",
	KindUndefinedSymbol:         "UndefinedSymbolError",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Error"
}

// Error is a fatal, optionally located diagnostic.
type Error struct {
	Kind Kind
	Loc  SourceLoc
	Msg  string
	// Record names the record being resolved when the error fired, if any.
	Record string
}

func (e *Error) Error() string {
	if e.Loc.IsZero() {
		return "error: " + e.Msg
	}
	return fmt.Sprintf("%s: error: %s", e.Loc, e.Msg)
}

// Errorf builds an unlocated error of the given kind.
func Errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ErrorAt builds a located error of the given kind.
func ErrorAt(loc SourceLoc, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

// At attaches loc to err when err is a *Error without a location.
// Foreign errors are converted into a located TypeError.
func At(loc SourceLoc, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		if de.Loc.IsZero() {
			de.Loc = loc
		}
		return err
	}
	return &Error{Kind: KindType, Loc: loc, Msg: err.Error()}
}

// KindOf returns the kind of err, and false when err is not a diagnostic.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
