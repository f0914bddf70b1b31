package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/theblitlabs/cook-staking/internal/session"
	"github.com/theblitlabs/cook-staking/internal/telemetry"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Stream pushes a view on connect and after every state transition. Slow
// clients only ever receive the latest state.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}
	defer conn.Close()

	telemetry.RecordStreamClient(1)
	defer telemetry.RecordStreamClient(-1)

	updates := make(chan session.State, 1)
	cancel := h.ctrl.Subscribe(func(s session.State) {
		for {
			select {
			case updates <- s:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debug().Err(err).Msg("Stream closed")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	send := func(s session.State) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(WSMessage{Type: "state", Payload: NewView(s, h.symbol)})
	}

	current := h.ctrl.Snapshot()
	if err := send(current); err != nil {
		h.log.Debug().Err(err).Msg("Failed to send initial state")
		return
	}
	last := current.Version

	for {
		select {
		case <-done:
			return
		case s := <-updates:
			if s.Version <= last {
				continue
			}
			last = s.Version
			if err := send(s); err != nil {
				h.log.Debug().Err(err).Msg("Failed to send state")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
