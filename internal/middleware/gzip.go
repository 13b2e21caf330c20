package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"
)

// GzipMiddleware inflates gzip request bodies and compresses JSON and HTML responses for
// clients that accept gzip. The decision is taken on the response Content-Type.
func GzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			gzReader, err := gzip.NewReader(r.Body)
			if err != nil {
				http.Error(w, "Invalid gzip body", http.StatusBadRequest)
				return
			}
			defer gzReader.Close()
			r.Body = gzReader
			r.Header.Del("Content-Encoding")
		}

		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		grw := &gzipResponseWriter{ResponseWriter: w}
		defer grw.Close()

		next.ServeHTTP(grw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	writer  *gzip.Writer
	decided bool
}

func (grw *gzipResponseWriter) decide() {
	if grw.decided {
		return
	}
	grw.decided = true

	h := grw.ResponseWriter.Header()
	h.Add("Vary", "Accept-Encoding")
	if !compressible(h.Get("Content-Type")) || h.Get("Content-Encoding") != "" {
		return
	}

	h.Set("Content-Encoding", "gzip")
	h.Del("Content-Length")
	grw.writer = gzip.NewWriter(grw.ResponseWriter)
}

func (grw *gzipResponseWriter) WriteHeader(statusCode int) {
	grw.decide()
	grw.ResponseWriter.WriteHeader(statusCode)
}

func (grw *gzipResponseWriter) Write(b []byte) (int, error) {
	grw.decide()
	if grw.writer == nil {
		return grw.ResponseWriter.Write(b)
	}
	return grw.writer.Write(b)
}

func (grw *gzipResponseWriter) Close() error {
	if grw.writer == nil {
		return nil
	}
	return grw.writer.Close()
}

func compressible(contentType string) bool {
	return strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "text/html")
}
