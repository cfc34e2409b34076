package middleware

import (
	"net/http"
	"regexp"

	"github.com/oklog/ulid/v2"

	"github.com/Hynox-org/aharraa-server/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// Upstream ids are kept only when they are short and log-safe.
var inboundRequestID = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// RequestID tags the request with an id, echoes it in the response and
// attaches it to the request logger. Generated ids are ULIDs.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if !inboundRequestID.MatchString(reqID) {
				reqID = ulid.Make().String()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := withRequestID(r.Context(), reqID)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
