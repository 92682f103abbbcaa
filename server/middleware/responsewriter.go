package middleware

import "net/http"

// statusWriter records what a handler sent so RequestLogger can report it
// after the handler returns. Change-feed handlers flush every event through
// it, so Flush must reach the underlying writer.
type statusWriter struct {
	http.ResponseWriter
	status  int
	bytes   int64
	flushes int
	started bool
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

// WriteHeader keeps the first status code; later calls are passed on but not
// recorded, matching net/http which ignores superfluous headers.
func (sw *statusWriter) WriteHeader(code int) {
	if !sw.started {
		sw.status = code
		sw.started = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.started = true
	n, err := sw.ResponseWriter.Write(b)
	sw.bytes += int64(n)
	return n, err
}

// Flush pushes buffered change-feed events to the client.
func (sw *statusWriter) Flush() {
	f, ok := sw.ResponseWriter.(http.Flusher)
	if !ok {
		return
	}
	sw.started = true
	sw.flushes++
	f.Flush()
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// streamed reports whether the handler flushed at least once, which marks an
// event stream rather than a single response body.
func (sw *statusWriter) streamed() bool {
	return sw.flushes > 0
}
