package operations

import (
	"slices"
	"strings"
)

// Kind is the request body key that selects an operation.
type Kind string

const (
	KindFibonacci Kind = "fibonacci"
	KindPrime     Kind = "prime"
	KindLCM       Kind = "lcm"
	KindHCF       Kind = "hcf"
	KindAI        Kind = "AI"
)

var kinds = []Kind{KindFibonacci, KindPrime, KindLCM, KindHCF, KindAI}

// Kinds lists the recognized keys in documentation order.
func Kinds() []Kind {
	return slices.Clone(kinds)
}

// ParseKind matches a body key exactly; keys are case-sensitive.
func ParseKind(key string) (Kind, bool) {
	for _, k := range kinds {
		if string(k) == key {
			return k, true
		}
	}
	return "", false
}

func kindList() string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

var (
	MsgExactlyOneKey = "Request must contain exactly one of: " + kindList()
	MsgInvalidKey    = "Invalid key. Must be one of: " + kindList()
)

const (
	MsgAINotConfigured = "AI service not configured"
	MsgAIUnavailable   = "AI service unavailable"
)

// Operation is a validated request. The set of variants is closed.
type Operation interface {
	Kind() Kind
	operation()
}

type Fibonacci struct {
	N int
}

type PrimeFilter struct {
	Values []int64
}

type LCM struct {
	Values []int64
}

type HCF struct {
	Values []int64
}

type Ask struct {
	Question string
}

func (Fibonacci) Kind() Kind   { return KindFibonacci }
func (PrimeFilter) Kind() Kind { return KindPrime }
func (LCM) Kind() Kind         { return KindLCM }
func (HCF) Kind() Kind         { return KindHCF }
func (Ask) Kind() Kind         { return KindAI }

func (Fibonacci) operation()   {}
func (PrimeFilter) operation() {}
func (LCM) operation()         {}
func (HCF) operation()         {}
func (Ask) operation()         {}

// Example returns the sample request value shown on the docs endpoint.
func Example(k Kind) any {
	switch k {
	case KindFibonacci:
		return 7
	case KindPrime:
		return []int64{2, 4, 7, 9, 11}
	case KindLCM:
		return []int64{12, 18, 24}
	case KindHCF:
		return []int64{24, 36, 60}
	case KindAI:
		return "What is the capital of India?"
	default:
		return nil
	}
}
