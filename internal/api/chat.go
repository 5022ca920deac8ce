package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/wellness-planner/internal/coordinator"
	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/identity"
)

const (
	maxMessageLength = 4000
	wsWriteTimeout   = 10 * time.Second
)

// ChatRequest is the body of POST /api/agent/chat.
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// ChatResponse is one turn's reply. Persisted is false when the reply was
// computed but the session save failed; the server keeps retrying it.
type ChatResponse struct {
	coordinator.Result
	Persisted bool `json:"persisted"`
}

// Chat runs one turn for the caller.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !h.limiter.Allow(fmt.Sprint(uid)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	var req ChatRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.turn(r.Context(), uid, req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// turn runs Converse and folds a storage failure into the response.
func (h *Handler) turn(ctx context.Context, uid int64, message string) (*ChatResponse, error) {
	res, err := h.coord.Converse(ctx, uid, message)
	switch {
	case err == nil:
		return &ChatResponse{Result: res, Persisted: true}, nil
	case errors.Is(err, domain.ErrStorageFailure) && res.Response != "":
		h.logger.Warn("Returning unsaved turn", "user_id", uid, "turn_id", res.TurnID, "error", err)
		return &ChatResponse{Result: res, Persisted: false}, nil
	default:
		return nil, err
	}
}

// wsError is sent as a frame when a turn cannot be processed.
type wsError struct {
	Error string `json:"error"`
}

// ChatSocket serves GET /ws/chat. Each text frame is one turn and each
// reply is one JSON frame. Turns on one connection run in order.
func (h *Handler) ChatSocket(w http.ResponseWriter, r *http.Request) {
	uid, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Error("WebSocket accept failed", "user_id", uid, "error", err)
		return
	}
	ws.SetReadLimit(maxMessageLength * 4)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("WebSocket close error", "user_id", uid, "error", closeErr)
		}
	}()

	h.logger.Info("Chat socket connected", "user_id", uid)
	ctx := r.Context()
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				h.logger.Debug("WebSocket read error", "user_id", uid, "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			if !h.writeFrame(ctx, ws, wsError{Error: "only text frames are supported"}) {
				return
			}
			continue
		}

		frame := h.socketTurn(ctx, uid, string(data))
		if !h.writeFrame(ctx, ws, frame) {
			return
		}
		if e, isErr := frame.(wsError); isErr && e.Error == "session not found" {
			return
		}
	}
}

func (h *Handler) socketTurn(ctx context.Context, uid int64, message string) any {
	if len(message) > maxMessageLength {
		return wsError{Error: "message is too long"}
	}
	if !h.limiter.Allow(fmt.Sprint(uid)) {
		return wsError{Error: "rate limit exceeded"}
	}
	resp, err := h.turn(ctx, uid, message)
	if err != nil {
		switch statusFor(err) {
		case http.StatusBadRequest:
			return wsError{Error: err.Error()}
		case http.StatusNotFound:
			return wsError{Error: "session not found"}
		default:
			h.logger.Error("Socket turn failed", "user_id", uid, "error", err)
			return wsError{Error: "internal error"}
		}
	}
	return resp
}

func (h *Handler) writeFrame(ctx context.Context, ws *websocket.Conn, v any) bool {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, ws, v); err != nil {
		h.logger.Debug("WebSocket write error", "error", err)
		return false
	}
	return true
}
