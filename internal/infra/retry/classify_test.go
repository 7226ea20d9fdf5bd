package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func apiErr(code int, msg string) error {
	return &APIError{Status: code, Data: APIErrorData{Error: APIErrorBody{Message: msg}}}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      Code
		kind      Kind
		retryable bool
	}{
		{"429", apiErr(429, "quota"), HTTPStatus(429), KindHTTP, true},
		{"401", apiErr(401, "bad key"), HTTPStatus(401), KindHTTP, false},
		{"403", apiErr(403, "forbidden"), HTTPStatus(403), KindHTTP, false},
		{"400", apiErr(400, "bad request"), HTTPStatus(400), KindHTTP, false},
		{"500", apiErr(500, "boom"), HTTPStatus(500), KindHTTP, true},
		{"503", apiErr(503, "overloaded"), HTTPStatus(503), KindHTTP, true},
		{"wrapped 503", fmt.Errorf("generate plan: %w", apiErr(503, "overloaded")), HTTPStatus(503), KindHTTP, true},
		{"ETIMEDOUT symbol", &CodeError{Code: "ETIMEDOUT", Message: "timeout"}, Symbol(CodeTimedOut), KindNetwork, true},
		{"ECONNRESET symbol", &CodeError{Code: "ECONNRESET", Message: "reset"}, Symbol(CodeConnReset), KindNetwork, true},
		{"ENOTFOUND symbol", &CodeError{Code: "ENOTFOUND", Message: "dns"}, Symbol(CodeNotFound), KindNetwork, false},
		{"ECONNREFUSED symbol", &CodeError{Code: "ECONNREFUSED", Message: "refused"}, Symbol(CodeConnRefused), KindNetwork, false},
		{"INVALID_PLAN", NewCodeError(CodeInvalidPlan, "no lots"), Symbol(CodeInvalidPlan), KindDomain, true},
		{"LOTS_BELOW_MINIMUM", NewCodeError(CodeLotsBelowMinimum, "lot A"), Symbol(CodeLotsBelowMinimum), KindDomain, true},
		{"AREA_MISMATCH", NewCodeError(CodeAreaMismatch, "sum"), Symbol(CodeAreaMismatch), KindDomain, true},
		{"OVERLAPPING_LOTS", NewCodeError(CodeOverlappingLots, "A/B"), Symbol(CodeOverlappingLots), KindDomain, true},
		{"NO_VIABLE_LOTS", NewCodeError(CodeNoViableLots, "tiny"), Symbol(CodeNoViableLots), KindDomain, false},
		{"unknown status", apiErr(418, "teapot"), HTTPStatus(418), KindUnknown, false},
		{"lowercase symbol", &CodeError{Code: "etimedout", Message: "x"}, Symbol("etimedout"), KindUnknown, false},
		{"plain error", errors.New("something odd"), Symbol(CodeUnknown), KindUnknown, false},
		{"syscall reset", fmt.Errorf("read: %w", syscall.ECONNRESET), Symbol(CodeConnReset), KindNetwork, true},
		{"syscall refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, Symbol(CodeConnRefused), KindNetwork, false},
		{"dns not found", &net.DNSError{Err: "no such host", Name: "api.example", IsNotFound: true}, Symbol(CodeNotFound), KindNetwork, false},
		{"dns temporary", &net.DNSError{Err: "try again", Name: "api.example", IsTemporary: true}, Symbol(CodeTemporaryDNSError), KindNetwork, true},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), Symbol(CodeTimedOut), KindNetwork, true},
		{"unexpected eof", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), Symbol(CodeConnReset), KindNetwork, true},
		{"grpc exhausted", status.Error(codes.ResourceExhausted, "quota"), HTTPStatus(429), KindHTTP, true},
		{"grpc unauthenticated", status.Error(codes.Unauthenticated, "key"), HTTPStatus(401), KindHTTP, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), HTTPStatus(503), KindHTTP, true},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "slow"), Symbol(CodeTimedOut), KindNetwork, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Code != tt.code {
				t.Errorf("Code = %v, want %v", got.Code, tt.code)
			}
			if got.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.retryable)
			}
			if got.UserMessage == "" {
				t.Error("UserMessage is empty")
			}
		})
	}
}

func TestClassify_UnknownFallback(t *testing.T) {
	got := Classify(apiErr(599, "weird"))
	if got.Retryable {
		t.Error("unrecognized status must not be retryable")
	}
	if got.UserMessage != UnknownUserMessage {
		t.Errorf("UserMessage = %q, want fallback", got.UserMessage)
	}
}

func TestClassify_PreservesRawMessage(t *testing.T) {
	err := apiErr(429, "Resource has been exhausted (e.g. check quota).")
	got := Classify(err)

	if got.RawMessage != "Resource has been exhausted (e.g. check quota)." {
		t.Errorf("RawMessage = %q", got.RawMessage)
	}
	if got.Error() != got.UserMessage {
		t.Errorf("Error() = %q, want the user message", got.Error())
	}
	if !errors.Is(got, err) {
		t.Error("classified error should unwrap to the raw error")
	}
}

func TestClassify_StatusWinsOverSymbol(t *testing.T) {
	err := &statusAndCode{status: 503, code: CodeNoViableLots}
	if got := Classify(err); got.Code != HTTPStatus(503) {
		t.Errorf("Code = %v, want 503", got.Code)
	}

	// An unmatched status still lets the symbol tables resolve.
	err = &statusAndCode{status: 299, code: CodeConnReset}
	if got := Classify(err); got.Code != Symbol(CodeConnReset) {
		t.Errorf("Code = %v, want ECONNRESET", got.Code)
	}
}

type statusAndCode struct {
	status int
	code   string
}

func (e *statusAndCode) Error() string     { return "mixed" }
func (e *statusAndCode) StatusCode() int   { return e.status }
func (e *statusAndCode) ErrorCode() string { return e.code }
