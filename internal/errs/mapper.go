package errs

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MapTransportError implements the Error Mapper (spec.md §4.7): it
// translates a transport-level failure from the gRPC channel into the
// taxonomy above. Unknown statuses map to KindRemoteFailure carrying the
// original status text and code so nothing is silently swallowed.
func MapTransportError(endpoint string, err error) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return WithEndpoint(KindCancelled, "call cancelled", endpoint, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return WithEndpoint(KindTransportDeadline, "deadline exceeded", endpoint, err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return WithEndpoint(KindRemoteFailure, err.Error(), endpoint, err)
	}

	switch st.Code() {
	case codes.Unavailable, codes.Aborted, codes.Internal, codes.Unknown:
		return WithEndpoint(KindTransportUnavailable, st.Message(), endpoint, err)
	case codes.DeadlineExceeded:
		return WithEndpoint(KindTransportDeadline, st.Message(), endpoint, err)
	case codes.Canceled:
		return WithEndpoint(KindCancelled, st.Message(), endpoint, err)
	case codes.ResourceExhausted:
		return WithEndpoint(KindMessageTooLarge, st.Message(), endpoint, err)
	case codes.OK:
		return nil
	default:
		// a database-level error surfaced by the remote proxy server is
		// terminal: it's a real answer from the database, not a transport fault.
		return WithEndpoint(KindRemoteFailure, st.Message(), endpoint, err)
	}
}
