package operations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"bfhl/go-backend/internal/domains/apierr"
	"bfhl/go-backend/internal/domains/mathops"
)

// Asker answers a short natural-language question.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Dispatcher runs the KeyCheck -> Validate -> Execute pipeline for one
// request body. It holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	asker  Asker
	logger *slog.Logger
}

// NewDispatcher builds a dispatcher. A nil asker means the AI operation is
// not configured and is answered with a service-unavailable error.
func NewDispatcher(asker Asker, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{asker: asker, logger: logger.With("component", "dispatcher")}
}

// AIConfigured reports whether the AI operation can be executed.
func (d *Dispatcher) AIConfigured() bool {
	return d.asker != nil
}

// Parse applies the key check and the matched key's schema.
func Parse(body map[string]json.RawMessage) (Operation, error) {
	if len(body) != 1 {
		return nil, apierr.ClientInput(MsgExactlyOneKey)
	}
	for key, raw := range body {
		kind, ok := ParseKind(key)
		if !ok {
			return nil, apierr.ClientInput(MsgInvalidKey)
		}
		return validateValue(kind, raw)
	}
	return nil, apierr.ClientInput(MsgExactlyOneKey)
}

// Handle parses and executes one request body.
func (d *Dispatcher) Handle(ctx context.Context, body map[string]json.RawMessage) (Operation, any, error) {
	op, err := Parse(body)
	if err != nil {
		return nil, nil, err
	}
	data, err := d.Execute(ctx, op)
	return op, data, err
}

// Execute runs a validated operation. Math operations cannot fail; a panic
// anywhere below is converted into an internal error.
func (d *Dispatcher) Execute(ctx context.Context, op Operation) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("operation panicked",
				"operation", kindOf(op),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			data = nil
			err = apierr.Internal(fmt.Errorf("panic in %s: %v", kindOf(op), r))
		}
	}()

	switch op := op.(type) {
	case Fibonacci:
		return mathops.Fibonacci(op.N), nil
	case PrimeFilter:
		return mathops.FilterPrimes(op.Values), nil
	case LCM:
		return mathops.LCM(op.Values), nil
	case HCF:
		return mathops.HCF(op.Values), nil
	case Ask:
		return d.ask(ctx, op)
	default:
		return nil, apierr.Internal(fmt.Errorf("unhandled operation %T", op))
	}
}

func (d *Dispatcher) ask(ctx context.Context, op Ask) (any, error) {
	if d.asker == nil {
		return nil, apierr.ServiceUnavailable(MsgAINotConfigured)
	}
	answer, err := d.asker.Ask(ctx, op.Question)
	if err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, apierr.Upstream(MsgAIUnavailable, err)
	}
	return answer, nil
}

func kindOf(op Operation) string {
	if op == nil {
		return "unknown"
	}
	return string(op.Kind())
}
