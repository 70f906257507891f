package utils

import (
	"bytes"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// SendSSEEvent 发送Server-Sent Events数据块. A non-empty event adds an "event:" line so
// EventSource clients can listen per event name.
func SendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Warn("failed to marshal sse payload", zap.String("event", event), zap.Error(err))
		return
	}

	var frame bytes.Buffer
	if event != "" {
		frame.WriteString("event: ")
		frame.WriteString(event)
		frame.WriteByte('\n')
	}
	frame.WriteString("data: ")
	frame.Write(data)
	frame.WriteString("\n\n")

	if _, err := w.Write(frame.Bytes()); err != nil {
		zap.L().Debug("failed to write sse frame", zap.String("event", event), zap.Error(err))
		return
	}
	flusher.Flush()
}

// SetupSSEHeaders 设置Server-Sent Events响应头
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}
