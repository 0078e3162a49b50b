package bridge

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sassc/protocol"
	"sassc/sass"
)

// FunctionError wraps a failure raised by a legacy custom function. Its
// message composes the generic function attribution with the cause's own
// message, so the original detail survives even when the caller's error
// formatting ignores cause chains. The wrapper is owned by this adapter;
// no shared error type is mutated.
type FunctionError struct {
	Name  string
	Cause error
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("error in custom function %s: %s", e.Name, e.Cause)
}

func (e *FunctionError) Unwrap() error {
	return e.Cause
}

// FunctionsHandler wraps a set of legacy custom functions into the
// protocol callback table. One handler serves exactly one render; the
// option bag it holds is exposed to every invoked function.
type FunctionsHandler struct {
	funcs sass.FunctionSet
	opts  *sass.Options
	diag  protocol.Logger
	log   *zap.Logger
}

// NewFunctionsHandler creates a handler for one render. diag receives the
// original message of any custom-function failure; it may be nil.
func NewFunctionsHandler(funcs sass.FunctionSet, opts *sass.Options, diag protocol.Logger, log *zap.Logger) *FunctionsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &FunctionsHandler{funcs: funcs, opts: opts, diag: diag, log: log.Named("functions-handler")}
}

// Callbacks returns the protocol function table, keyed by the legacy
// signature string.
func (h *FunctionsHandler) Callbacks() map[string]protocol.Function {
	callbacks := make(map[string]protocol.Function, len(h.funcs))
	for signature, fn := range h.funcs {
		callbacks[signature] = h.callback(functionName(signature), fn)
	}
	return callbacks
}

func (h *FunctionsHandler) callback(name string, fn sass.Function) protocol.Function {
	return func(args []protocol.Value) (protocol.Value, error) {
		converted := make([]sass.Value, len(args))
		for i, arg := range args {
			v, err := FromProtocol(arg)
			if err != nil {
				// contract violation, not a script error
				return nil, err
			}
			converted[i] = v
		}

		result, err := h.invoke(fn, converted)
		if err != nil {
			h.log.Debug("Custom function failed", zap.String("function", name), zap.Error(err))
			if h.diag != nil {
				h.diag.Warn(err.Error())
			}
			return nil, &FunctionError{Name: name, Cause: err}
		}

		return ToProtocol(result)
	}
}

// invoke runs the legacy function, turning a panic in its body into an
// error so that arbitrary function behavior cannot abort the compilation
// host.
func (h *FunctionsHandler) invoke(fn sass.Function, args []sass.Value) (result sass.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(h.opts, args)
}

// functionName extracts the bare name from a legacy signature like
// "add($a, $b)".
func functionName(signature string) string {
	if i := strings.IndexByte(signature, '('); i >= 0 {
		return strings.TrimSpace(signature[:i])
	}
	return signature
}
