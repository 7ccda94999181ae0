// conditional.go implements conditional inclusion (#ifdef, #ifndef, #else, #endif).
package preproc

import (
	"fmt"

	"github.com/raymyers/ralph-tblgen/pkg/diag"
)

// ConditionState tracks the state of one nested conditional.
type ConditionState struct {
	active    bool // true if current branch is active (included)
	seenElse  bool // true if #else has been seen for this level
	anyActive bool // true if any branch at this level was active
	opened    diag.SourceLoc
}

// ConditionalProcessor handles conditional directives.
type ConditionalProcessor struct {
	macros *MacroTable
	stack  []ConditionState // stack of nested conditions
}

// NewConditionalProcessor creates a new conditional processor.
func NewConditionalProcessor(macros *MacroTable) *ConditionalProcessor {
	return &ConditionalProcessor{
		macros: macros,
		stack:  []ConditionState{},
	}
}

// IsActive returns true if the current location is active (should be included).
func (cp *ConditionalProcessor) IsActive() bool {
	for _, state := range cp.stack {
		if !state.active {
			return false
		}
	}
	return true
}

// ProcessIfdef handles #ifdef directive.
func (cp *ConditionalProcessor) ProcessIfdef(name string, loc diag.SourceLoc) {
	cp.push(cp.macros.IsDefined(name), loc)
}

// ProcessIfndef handles #ifndef directive.
func (cp *ConditionalProcessor) ProcessIfndef(name string, loc diag.SourceLoc) {
	cp.push(!cp.macros.IsDefined(name), loc)
}

func (cp *ConditionalProcessor) push(taken bool, loc diag.SourceLoc) {
	// Inside an inactive branch nothing nested can become active.
	if !cp.IsActive() {
		cp.stack = append(cp.stack, ConditionState{opened: loc})
		return
	}
	cp.stack = append(cp.stack, ConditionState{active: taken, anyActive: taken, opened: loc})
}

// ProcessElse handles #else directive.
func (cp *ConditionalProcessor) ProcessElse() error {
	if len(cp.stack) == 0 {
		return fmt.Errorf("#else without matching #ifdef or #ifndef")
	}

	state := &cp.stack[len(cp.stack)-1]
	if state.seenElse {
		return fmt.Errorf("duplicate #else")
	}
	state.seenElse = true

	parentActive := true
	for i := 0; i < len(cp.stack)-1; i++ {
		if !cp.stack[i].active {
			parentActive = false
			break
		}
	}

	state.active = parentActive && !state.anyActive
	if state.active {
		state.anyActive = true
	}
	return nil
}

// ProcessEndif handles #endif directive.
func (cp *ConditionalProcessor) ProcessEndif() error {
	if len(cp.stack) == 0 {
		return fmt.Errorf("#endif without matching #ifdef or #ifndef")
	}
	cp.stack = cp.stack[:len(cp.stack)-1]
	return nil
}

// Depth returns the nesting depth of conditionals.
func (cp *ConditionalProcessor) Depth() int {
	return len(cp.stack)
}

// CheckBalanced returns an error if conditionals opened above depth are
// still open.
func (cp *ConditionalProcessor) CheckBalanced(depth int) error {
	if len(cp.stack) > depth {
		open := cp.stack[len(cp.stack)-1].opened
		return diag.ErrorAt(open, diag.KindPreprocess,
			"unterminated conditional directive, %d level(s) unclosed", len(cp.stack)-depth)
	}
	return nil
}
