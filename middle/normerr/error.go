// Package normerr defines the fatal errors the middle end can raise. They
// all indicate an upstream analysis inconsistency; none are recoverable
// within the pass.
package normerr

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// enableDebugErrorPrinting makes errors include their stacktrace when printed
const enableDebugErrorPrinting bool = true
const enableDebugFullStacktrace bool = false

type ErrCode int

const (
	None ErrCode = iota
	// OpenType: an unresolved (open/generic) type reached normalization.
	OpenType
	// UnresolvedVirtual: a virtual method has no implementation anywhere
	// in its hierarchy.
	UnresolvedVirtual
)

type NormError interface {
	Error() string
	Code() ErrCode

	withStack([]byte) NormError
	getStack() []byte
}

func FormatWithCode(e NormError) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := string(e.getStack())
		if !enableDebugFullStacktrace {
			stack = strings.Split(stack, "\n")[6]
		}
		return fmt.Sprintf("%s:(N%03d) %s", stack, e.Code(), e.Error())
	}
	return fmt.Sprintf("(N%03d) %s", e.Code(), e.Error())
}

func New[E NormError](err E) NormError {
	return err.withStack(debug.Stack())
}

type Unclassified struct {
	From  error
	stack []byte
}

func (e Unclassified) Error() string {
	return fmt.Sprintf("unclassified error: %v", e.From)
}
func (e Unclassified) Code() ErrCode    { return None }
func (e Unclassified) getStack() []byte { return e.stack }
func (e Unclassified) withStack(stack []byte) NormError {
	e.stack = stack
	return e
}
