package vm

import (
	"fmt"
	"strings"
)

// InterpretResult classifies the outcome of running a script. Every
// interpretation ends in exactly one of these.
type InterpretResult int

const (
	// ResultOK: the script ran to completion.
	ResultOK InterpretResult = iota
	// ResultCompileError: the source did not compile; nothing ran.
	ResultCompileError
	// ResultRuntimeError: execution aborted with a runtime error.
	ResultRuntimeError
	// ResultExitOK: the script called exit with status 0.
	ResultExitOK
	// ResultExitError: the script called exit with a nonzero status.
	ResultExitError
)

func (r InterpretResult) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultCompileError:
		return "compile error"
	case ResultRuntimeError:
		return "runtime error"
	case ResultExitOK:
		return "exit"
	case ResultExitError:
		return "exit with error"
	default:
		return fmt.Sprintf("InterpretResult(%d)", int(r))
	}
}

// TracebackFrame is one entry of a runtime error's call trace.
type TracebackFrame struct {
	Function string // "script" for the top level
	Line     int
}

// RuntimeError is the error produced when execution aborts. The traceback
// is ordered innermost frame first.
type RuntimeError struct {
	Message   string
	Traceback []TracebackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, f := range e.Traceback {
		fmt.Fprintf(&b, "\n[line %d] in %s", f.Line, f.Function)
	}
	return b.String()
}
