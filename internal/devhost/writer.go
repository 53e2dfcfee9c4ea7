package devhost

import (
	"net/http"
	"strings"

	"github.com/danmuck/webbridge/internal/bridge"
)

// clientScriptTag is appended to every forwarded HTML document.
const clientScriptTag = `<script src="/__bridge/client.js"></script>`

// httpWriter streams a forwarded response into an HTTP response, flushing per chunk.
type httpWriter struct {
	w      http.ResponseWriter
	inject bool
	html   bool
}

var _ bridge.ResponseWriter = (*httpWriter)(nil)

func newHTTPWriter(w http.ResponseWriter, inject bool) *httpWriter {
	return &httpWriter{w: w, inject: inject}
}

func (hw *httpWriter) Start(rs bridge.ResponseStart) {
	h := hw.w.Header()
	for k, v := range rs.Headers {
		h.Set(k, v)
	}
	h.Set("Content-Type", rs.Mime)
	hw.html = hw.inject && strings.HasPrefix(strings.ToLower(rs.Mime), "text/html")
	if hw.html {
		h.Del("Content-Length")
	}
	hw.w.WriteHeader(rs.Status)
}

func (hw *httpWriter) Write(p []byte) error {
	if _, err := hw.w.Write(p); err != nil {
		return err
	}
	hw.flush()
	return nil
}

func (hw *httpWriter) Finish() {
	if hw.html {
		_, _ = hw.w.Write([]byte(clientScriptTag))
	}
	hw.flush()
}

func (hw *httpWriter) flush() {
	if f, ok := hw.w.(http.Flusher); ok {
		f.Flush()
	}
}
