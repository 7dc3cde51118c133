package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tokenart/internal/domain"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type streamEventJSON struct {
	Type         string           `json:"type"`
	Target       string           `json:"target"`
	Contribution contributionJSON `json:"contribution"`
	FundingGoal  *amountJSON      `json:"funding_goal"`
	FullyFunded  bool             `json:"fully_funded"`
	JustFunded   bool             `json:"just_funded"`
}

func (a *App) streamEvent(ev domain.ContributionEvent) streamEventJSON {
	out := streamEventJSON{
		Type:         "contribution",
		Target:       ev.Contribution.Target.String(),
		Contribution: a.contribution(ev.Contribution),
		FullyFunded:  ev.FullyFunded,
		JustFunded:   ev.JustFunded,
	}
	if ev.FundingGoal != nil {
		out.FundingGoal = a.optionalAmount(*ev.FundingGoal, true)
	}
	return out
}

// Stream handles GET /v1/targets/{target}/stream. It sends the current summary
// on connect and then every committed contribution to the target.
func (a *App) Stream(w http.ResponseWriter, r *http.Request) {
	if a.Hub == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "live feed disabled")
		return
	}
	target := targetParam(r)
	sub := a.Hub.Subscribe(target)
	defer sub.Close()

	sum, err := a.Ledger.Summary(r.Context(), target)
	if err != nil {
		a.ledgerError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// The reader only services control frames and notices disconnects.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(map[string]any{"type": "summary", "summary": a.summary(sum)}); err != nil {
		return
	}

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(a.streamEvent(ev)); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
