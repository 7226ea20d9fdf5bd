package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Entry is a static classification for one code.
type Entry struct {
	Retryable   bool
	UserMessage string
}

// UnknownUserMessage is shown for failures no table recognizes.
const UnknownUserMessage = "An unexpected error occurred. Please try again, and contact support if the problem persists."

// Classifier maps raw failures to ClassifiedErrors. Lookups go HTTP status
// table, then network symbols, then domain symbols, then the unknown entry.
type Classifier struct {
	httpStatus map[int]Entry
	network    map[string]Entry
	domain     map[string]Entry
}

// NewClassifier returns a classifier with the standard tables.
func NewClassifier() *Classifier {
	return &Classifier{
		httpStatus: map[int]Entry{
			400: {false, "The request was rejected as invalid. Adjust the parcel details and try again."},
			401: {false, "The generation service rejected the API key. Check the key in your settings."},
			403: {false, "Your API key is not allowed to use this service. Check your account permissions."},
			404: {false, "The requested model is not available. Check the configured model name."},
			429: {true, "The generation service is receiving too many requests. Please wait a moment and try again."},
			500: {true, "The generation service hit an internal error. Please try again shortly."},
			502: {true, "The generation service could not be reached through its gateway. Please try again shortly."},
			503: {true, "The generation service is temporarily unavailable. Please try again in a few minutes."},
			504: {true, "The generation service took too long to respond. Please try again."},
		},
		network: map[string]Entry{
			CodeTimedOut:          {true, "The request timed out. Check your internet connection and try again."},
			CodeConnReset:         {true, "The connection was interrupted. Please try again."},
			CodeTemporaryDNSError: {true, "The service address could not be resolved right now. Please try again."},
			CodeNotFound:          {false, "Could not reach the generation service. Check your internet connection."},
			CodeConnRefused:       {false, "The generation service refused the connection. Check the service endpoint setting."},
		},
		domain: map[string]Entry{
			CodeInvalidPlan:      {true, "The generated plan was not valid. Try generating again."},
			CodeLotsBelowMinimum: {true, "Some generated lots were smaller than the minimum lot size. Try generating again."},
			CodeAreaMismatch:     {true, "The generated lots did not add up to the parcel area. Try generating again."},
			CodeOverlappingLots:  {true, "The generated plan contained overlapping lots. Try generating again."},
			CodeNoViableLots:     {false, "The parcel is too small for a single lot at the minimum lot size. Lower the minimum or enlarge the parcel."},
		},
	}
}

var defaultClassifier = NewClassifier()

// Classify classifies err with the standard tables.
func Classify(err error) *ClassifiedError {
	return defaultClassifier.Classify(err)
}

// Classify returns exactly one ClassifiedError for err. Symbol matching is
// exact and case-sensitive.
func (c *Classifier) Classify(err error) *ClassifiedError {
	raw := extract(err)

	if raw.status != 0 {
		if e, ok := c.httpStatus[raw.status]; ok {
			return raw.classified(HTTPStatus(raw.status), KindHTTP, e, err)
		}
	}
	if raw.symbol != "" {
		if e, ok := c.network[raw.symbol]; ok {
			return raw.classified(Symbol(raw.symbol), KindNetwork, e, err)
		}
		if e, ok := c.domain[raw.symbol]; ok {
			return raw.classified(Symbol(raw.symbol), KindDomain, e, err)
		}
	}

	code := Symbol(CodeUnknown)
	switch {
	case raw.status != 0:
		code = HTTPStatus(raw.status)
	case raw.symbol != "":
		code = Symbol(raw.symbol)
	}
	return raw.classified(code, KindUnknown, Entry{Retryable: false, UserMessage: UnknownUserMessage}, err)
}

type rawFailure struct {
	status  int
	symbol  string
	message string
}

func (r rawFailure) classified(code Code, kind Kind, e Entry, cause error) *ClassifiedError {
	return &ClassifiedError{
		Code:        code,
		Kind:        kind,
		Retryable:   e.Retryable,
		RawMessage:  r.message,
		UserMessage: e.UserMessage,
		cause:       cause,
	}
}

type statusCoder interface {
	StatusCode() int
}

type errorCoder interface {
	ErrorCode() string
}

func extract(err error) rawFailure {
	if err == nil {
		return rawFailure{symbol: CodeUnknown, message: "unknown error"}
	}

	raw := rawFailure{message: err.Error()}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Data.Error.Message != "" {
		raw.message = apiErr.Data.Error.Message
	}
	var codeErr *CodeError
	if errors.As(err, &codeErr) && codeErr.Message != "" {
		raw.message = codeErr.Message
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		raw.status = sc.StatusCode()
	}
	var ec errorCoder
	if errors.As(err, &ec) {
		raw.symbol = ec.ErrorCode()
	}

	if raw.status == 0 && raw.symbol == "" {
		raw.status, raw.symbol = fromGRPC(err)
	}
	if raw.symbol == "" {
		raw.symbol = networkSymbol(err)
	}
	return raw
}

// fromGRPC translates gRPC status errors into HTTP-like statuses. The HTTP
// generation client never produces them; this serves operations wrapping
// gRPC-based generation SDKs passed to Run.
func fromGRPC(err error) (int, string) {
	st, ok := status.FromError(err)
	if !ok {
		return 0, ""
	}

	switch st.Code() {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return 400, ""
	case codes.Unauthenticated:
		return 401, ""
	case codes.PermissionDenied:
		return 403, ""
	case codes.NotFound:
		return 404, ""
	case codes.ResourceExhausted:
		return 429, ""
	case codes.Internal, codes.DataLoss:
		return 500, ""
	case codes.Unavailable:
		return 503, ""
	case codes.DeadlineExceeded:
		return 0, CodeTimedOut
	}
	return 0, ""
}

// networkSymbol maps Go network errors onto the socket error symbols.
func networkSymbol(err error) string {
	switch {
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.ErrUnexpectedEOF):
		return CodeConnReset
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeConnRefused
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout || dnsErr.IsTemporary {
			return CodeTemporaryDNSError
		}
		return CodeNotFound
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return CodeTimedOut
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimedOut
	}
	return ""
}
