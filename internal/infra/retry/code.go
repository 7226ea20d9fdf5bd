package retry

import (
	"fmt"
	"strconv"
)

// Network failure symbols.
const (
	CodeTimedOut          = "ETIMEDOUT"
	CodeConnReset         = "ECONNRESET"
	CodeNotFound          = "ENOTFOUND"
	CodeConnRefused       = "ECONNREFUSED"
	CodeTemporaryDNSError = "EAI_AGAIN"
)

// Plan validation symbols.
const (
	CodeInvalidPlan      = "INVALID_PLAN"
	CodeLotsBelowMinimum = "LOTS_BELOW_MINIMUM"
	CodeAreaMismatch     = "AREA_MISMATCH"
	CodeOverlappingLots  = "OVERLAPPING_LOTS"
	CodeNoViableLots     = "NO_VIABLE_LOTS"
)

// CodeUnknown marks failures that expose neither a status nor a symbol.
const CodeUnknown = "UNKNOWN"

// Kind is the taxonomy class of a classified error.
type Kind string

const (
	KindHTTP    Kind = "http"
	KindNetwork Kind = "network"
	KindDomain  Kind = "domain"
	KindUnknown Kind = "unknown"
)

// Code identifies a failure: either an HTTP-like status or a symbol. Exactly
// one of the fields is set. Code is comparable and usable as a map key.
type Code struct {
	Status int
	Symbol string
}

// HTTPStatus returns the code for an HTTP-like status.
func HTTPStatus(status int) Code { return Code{Status: status} }

// Symbol returns the code for a network or domain symbol.
func Symbol(symbol string) Code { return Code{Symbol: symbol} }

// ParseCode turns "429" into an HTTP status code and anything else into a
// symbol. Symbols are case-sensitive.
func ParseCode(s string) Code {
	if n, err := strconv.Atoi(s); err == nil {
		return HTTPStatus(n)
	}
	return Symbol(s)
}

func (c Code) String() string {
	if c.Status != 0 {
		return strconv.Itoa(c.Status)
	}
	return c.Symbol
}

// IsZero reports whether the code is empty.
func (c Code) IsZero() bool {
	return c.Status == 0 && c.Symbol == ""
}

// UnmarshalYAML accepts both integers and strings, so config lists can mix
// statuses and symbols.
func (c *Code) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case int:
		*c = HTTPStatus(v)
	case string:
		if v == "" {
			return fmt.Errorf("empty error code")
		}
		*c = ParseCode(v)
	default:
		return fmt.Errorf("invalid error code %v (%T)", raw, raw)
	}
	return nil
}

// MarshalText renders the code as its String form.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
