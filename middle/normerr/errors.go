package normerr

import (
	"fmt"

	"github.com/veldt-lang/veldt/analysis"
)

type NewOpenType struct {
	Type  analysis.Type
	stack []byte
}

func (e NewOpenType) Error() string {
	return fmt.Sprintf("open type '%v' reached normalization: the analysis produced an unresolved type", e.Type)
}
func (e NewOpenType) Code() ErrCode    { return OpenType }
func (e NewOpenType) getStack() []byte { return e.stack }
func (e NewOpenType) withStack(stack []byte) NormError {
	e.stack = stack
	return e
}

type NewUnresolvedVirtual struct {
	Class  string
	Method string
	stack  []byte
}

func (e NewUnresolvedVirtual) Error() string {
	return fmt.Sprintf("virtual method '%s.%s' has no implementation in its hierarchy", e.Class, e.Method)
}
func (e NewUnresolvedVirtual) Code() ErrCode    { return UnresolvedVirtual }
func (e NewUnresolvedVirtual) getStack() []byte { return e.stack }
func (e NewUnresolvedVirtual) withStack(stack []byte) NormError {
	e.stack = stack
	return e
}
