package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Wire format for the tutor streams: each text chunk goes out as an
// `event: message.delta` with a JSON `{"delta": ...}` payload, and the
// stream always terminates with `data: [DONE]`. Failures after the stream
// opened arrive as a terminal `event: error`, since the 200 status line is
// already on the wire by then.

type sseWriter struct {
	c       *gin.Context
	flusher http.Flusher
}

func newSSEWriter(c *gin.Context) (*sseWriter, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		respondError(c, http.StatusInternalServerError, "streaming_unsupported",
			fmt.Errorf("response writer cannot stream"))
		return nil, false
	}
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{c: c, flusher: flusher}, true
}

func (w *sseWriter) delta(text string) {
	if text == "" {
		return
	}
	payload, err := json.Marshal(gin.H{"delta": text})
	if err != nil {
		return
	}
	fmt.Fprintf(w.c.Writer, "event: message.delta\ndata: %s\n\n", payload)
	w.flusher.Flush()
}

func (w *sseWriter) fail(code string, err error) {
	payload, merr := json.Marshal(errorEnvelope{Error: apiError{Code: code, Message: err.Error()}})
	if merr != nil {
		return
	}
	fmt.Fprintf(w.c.Writer, "event: error\ndata: %s\n\n", payload)
	w.flusher.Flush()
}

func (w *sseWriter) done() {
	fmt.Fprint(w.c.Writer, "data: [DONE]\n\n")
	w.flusher.Flush()
}
