package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsHello is the first message a WebSocket client sends to open a stream.
type wsHello struct {
	StreamID   uint32 `json:"stream_id"`
	SourceID   string `json:"source_id"`
	SampleRate int    `json:"sample_rate"`
}

// wsAck confirms stream creation back to the client.
type wsAck struct {
	Status     string `json:"status"`
	StreamID   uint32 `json:"stream_id"`
	SampleRate int    `json:"sample_rate"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Ingest clients are trusted infrastructure, not browsers.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStreamSocket implements the /v1/stream WebSocket ingest endpoint.
// The first text message carries stream metadata as JSON; every subsequent
// binary message is raw little-endian PCM16 audio. Closing the connection
// flushes and removes the stream.
func (h *HTTPServer) handleStreamSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(10 * time.Second)); err != nil {
		h.logger.Warn("failed to set websocket read deadline",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
	}
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		h.logger.Warn("websocket hello read failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}
	if msgType != websocket.TextMessage {
		h.writeSocketError(conn, "expected JSON hello message")
		return
	}

	var hello wsHello
	if err := json.Unmarshal(data, &hello); err != nil {
		h.writeSocketError(conn, "invalid hello message: "+err.Error())
		return
	}

	session, err := h.streamMgr.CreateSession(hello.StreamID, hello.SourceID, hello.SampleRate)
	if err != nil {
		h.writeSocketError(conn, "failed to create stream: "+err.Error())
		return
	}

	h.logger.Info("websocket stream opened",
		slog.Uint64("stream_id", uint64(session.ID)),
		slog.String("source_id", session.SourceID),
		slog.String("remote_addr", r.RemoteAddr),
	)

	ack := wsAck{Status: "ok", StreamID: session.ID, SampleRate: session.Info().SampleRate}
	if err := conn.WriteJSON(ack); err != nil {
		h.streamMgr.RemoveSession(session.ID)
		return
	}

	var sequence uint32
	for {
		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			h.logger.Warn("failed to set websocket read deadline",
				slog.Uint64("stream_id", uint64(session.ID)),
				slog.String("error", err.Error()),
			)
		}
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket stream closed unexpectedly",
					slog.Uint64("stream_id", uint64(session.ID)),
					slog.String("error", err.Error()),
				)
			}
			break
		}

		switch msgType {
		case websocket.BinaryMessage:
			sequence++
			session.AddAudio(sequence, data)
		case websocket.TextMessage:
			// A text "flush" finalizes the current episode without
			// closing the stream.
			if string(data) == "flush" {
				session.Flush()
			}
		}
	}

	session.Flush()
	h.streamMgr.RemoveSession(session.ID)

	h.logger.Info("websocket stream closed",
		slog.Uint64("stream_id", uint64(session.ID)),
		slog.Uint64("chunks_received", uint64(sequence)),
	)
}

func (h *HTTPServer) writeSocketError(conn *websocket.Conn, message string) {
	conn.WriteJSON(map[string]string{"status": "error", "error": message})
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message))
}
