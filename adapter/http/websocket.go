package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsPingInterval   = 30 * time.Second
	wsPongWait       = 60 * time.Second
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 64 * 1024
	wsQueueSize      = 8
)

// wsTimings controls the keepalive of websocket sessions.
type wsTimings struct {
	pingInterval time.Duration
	pongWait     time.Duration
	writeWait    time.Duration
}

func defaultWSTimings() wsTimings {
	return wsTimings{
		pingInterval: wsPingInterval,
		pongWait:     wsPongWait,
		writeWait:    wsWriteWait,
	}
}

// wsFrame is the reply to one websocket query.
type wsFrame struct {
	*queryResponse
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}

// handleWebSocket answers each text frame {"query": ...} with a JSON frame.
// Frames without a conversation_id continue the session's conversation.
//
// Frames are read on the handler goroutine and answered in order by a
// worker, so pongs keep the read deadline alive while an answer is slow.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	timings := s.ws
	sessionID := uuid.NewString()
	logger := s.logger.With("session_id", sessionID)
	logger.InfoContext(r.Context(), "websocket session opened")

	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timings.pongWait))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex
	write := func(messageType int, payload []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.SetWriteDeadline(time.Now().Add(timings.writeWait)); err != nil {
			return err
		}
		return conn.WriteMessage(messageType, payload)
	}
	send := func(frame wsFrame) error {
		out, err := json.Marshal(frame)
		if err != nil {
			logger.ErrorContext(ctx, "error encoding websocket frame", "error", err)
			return nil
		}
		if err := write(websocket.TextMessage, out); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				logger.WarnContext(ctx, "websocket write failed", "error", err)
			}
			return err
		}
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(timings.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	queue := make(chan []byte, wsQueueSize)
	go func() {
		defer wg.Done()
		conversationID := ""
		for {
			var payload []byte
			select {
			case <-ctx.Done():
				return
			case p, ok := <-queue:
				if !ok {
					return
				}
				payload = p
			}

			frame := wsFrame{SessionID: sessionID}
			var req queryRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				frame.Error = "Invalid JSON body"
			} else {
				if req.ConversationID == "" {
					req.ConversationID = conversationID
				}
				resp, _, err := s.answer(ctx, req)
				if err != nil {
					frame.Error = err.Error()
				} else {
					frame.queryResponse = resp
					conversationID = resp.ConversationID
				}
			}
			if ctx.Err() != nil {
				return
			}
			if err := send(frame); err != nil {
				cancel()
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(timings.pongWait))
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WarnContext(ctx, "websocket read failed", "error", err)
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		select {
		case queue <- payload:
		default:
			_ = send(wsFrame{SessionID: sessionID, Error: "Too many pending queries"})
		}
	}
	cancel()
	close(queue)
	wg.Wait()
	logger.InfoContext(context.WithoutCancel(ctx), "websocket session closed")
}
