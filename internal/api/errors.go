package api

import (
	"errors"

	"github.com/matheus3301/stagechat/internal/messaging"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// ErrorDomain is the ErrorInfo domain of every error the service returns.
const ErrorDomain = "stagechat"

// Error kinds produced by the transport itself, next to messaging.Kind.
const (
	KindUnauthenticated = "UNAUTHENTICATED"
	KindNotAllowed      = "NOT_ALLOWED"
)

var kindCodes = map[string]codes.Code{
	"NOT_A_PARTICIPANT":    codes.PermissionDenied,
	"FORBIDDEN":            codes.PermissionDenied,
	"NOT_FOUND":            codes.NotFound,
	"ALREADY_MEMBER":       codes.AlreadyExists,
	"INVALID_SELF_REMOVAL": codes.InvalidArgument,
	"EMPTY_MESSAGE":        codes.InvalidArgument,
	"MESSAGE_TOO_LONG":     codes.InvalidArgument,
	"INVALID_INPUT":        codes.InvalidArgument,
	"NOT_GROUP":            codes.FailedPrecondition,
	"CREATION_FAILED":      codes.Aborted,
	"TIMEOUT":              codes.DeadlineExceeded,
	KindUnauthenticated:    codes.Unauthenticated,
	KindNotAllowed:         codes.PermissionDenied,
}

// statusError builds a status with an ErrorInfo detail carrying kind.
func statusError(kind, msg string) error {
	code, ok := kindCodes[kind]
	if !ok {
		code = codes.Internal
	}
	st := grpcstatus.New(code, msg)
	if detailed, err := st.WithDetails(&errdetails.ErrorInfo{Reason: kind, Domain: ErrorDomain}); err == nil {
		st = detailed
	}
	return st.Err()
}

// toStatus converts a messaging error. Internal failures never leak their
// text to the caller.
func toStatus(err error) error {
	kind := messaging.Kind(err)
	if kind == "INTERNAL" {
		return statusError(kind, "internal error")
	}
	return statusError(kind, err.Error())
}

// concealOwnership turns "not yours" into "not found" so callers cannot
// guess message ids.
func concealOwnership(err error) error {
	if errors.Is(err, messaging.ErrForbidden) {
		return messaging.ErrNotFound
	}
	return err
}

// ErrorKind extracts the machine-readable kind from an error returned by the
// service. It returns "" when the error carries no ErrorInfo.
func ErrorKind(err error) string {
	st, ok := grpcstatus.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return info.GetReason()
		}
	}
	return ""
}
