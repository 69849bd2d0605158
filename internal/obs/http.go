package obs

import (
	"net/http"
	"strings"
	"time"

	"github.com/kuitang/bringten-smoke/internal/logutil"
)

// ResponseRecorder tracks response status and bytes written.
type ResponseRecorder struct {
	http.ResponseWriter
	statusCode  int
	respBytes   int64
	wroteHeader bool
}

func (r *ResponseRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.statusCode = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *ResponseRecorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(p)
	r.respBytes += int64(n)
	return n, err
}

func (r *ResponseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *ResponseRecorder) StatusCode() int {
	return r.statusCode
}

func (r *ResponseRecorder) RespBytes() int64 {
	return r.respBytes
}

// NewResponseRecorder wraps a response writer.
func NewResponseRecorder(w http.ResponseWriter) (http.ResponseWriter, *ResponseRecorder) {
	recorder := &ResponseRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
	return recorder, recorder
}

// RequestContextMiddleware injects request_id and trace_id into context and
// echoes the request ID back in X-Request-Id.
func RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := r.Header
		traceparent := strings.TrimSpace(headers.Get("traceparent"))
		traceID := extractTraceID(traceparent)

		requestID := strings.TrimSpace(headers.Get("X-Request-Id"))
		if requestID == "" && traceID != "" {
			requestID = traceID
		}
		if requestID == "" {
			requestID = newRequestID()
		}
		w.Header().Set("X-Request-Id", requestID)

		corr := Correlation{
			RequestID: requestID,
			TraceID:   traceID,
		}
		ctx := WithCorrelation(r.Context(), corr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLogMiddleware emits one structured access event per request.
// Failed requests are logged at warn level together with their redacted headers.
func AccessLogMiddleware(pkg string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped, recorder := NewResponseRecorder(w)
		next.ServeHTTP(wrapped, r)

		l := From(r.Context()).With("pkg", pkg)
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.StatusCode(),
			"dur_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"resp_bytes", recorder.RespBytes(),
		}
		if recorder.StatusCode() >= http.StatusBadRequest {
			attrs = append(attrs, "headers", logutil.FormatHeadersForLog(r.Header))
			l.Warn("http_access", attrs...)
			return
		}
		l.Debug("http_access", attrs...)
	})
}

func extractTraceID(traceparent string) string {
	parts := strings.Split(strings.TrimSpace(traceparent), "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(strings.TrimSpace(parts[1]))
	if len(traceID) != 32 {
		return ""
	}
	if traceID == "00000000000000000000000000000000" {
		return ""
	}
	for i := 0; i < len(traceID); i++ {
		ch := traceID[i]
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}
