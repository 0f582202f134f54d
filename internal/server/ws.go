package server

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/voltmark/hwpricer/internal/events"
)

// streamInterval is the push cadence for /ws/prices subscribers.
const streamInterval = 10 * time.Second

// streamFrame is one pushed snapshot.
type streamFrame struct {
	Type      string                  `json:"type"`
	Prices    map[string]pricePayload `json:"prices"`
	Timestamp int64                   `json:"timestamp"`
}

// handlePriceStream upgrades to WebSocket and pushes the full price map on
// connect and then every streamInterval. When the event bus is wired, a
// price change also triggers an immediate push ahead of the ticker.
func (s *Server) handlePriceStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("Price stream subscriber connected")

	var changes <-chan events.Event
	if s.bus != nil {
		var cancel func()
		changes, cancel = s.bus.Subscribe(16)
		defer cancel()
	}

	if err := s.pushPrices(ctx, conn); err != nil {
		return
	}

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.pushPrices(ctx, conn); err != nil {
				s.log.Debug().Err(err).Msg("Price stream subscriber gone")
				return
			}
		case e := <-changes:
			if e.Type != events.PriceChanged {
				continue
			}
			if err := s.pushPrices(ctx, conn); err != nil {
				s.log.Debug().Err(err).Msg("Price stream subscriber gone")
				return
			}
		}
	}
}

func (s *Server) pushPrices(ctx context.Context, conn *websocket.Conn) error {
	all := s.aggregator.GetAllPrices()
	prices := make(map[string]pricePayload, len(all))
	for assetID, record := range all {
		prices[assetID] = toPayload(record, false)
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, conn, streamFrame{
		Type:      "prices",
		Prices:    prices,
		Timestamp: time.Now().UnixMilli(),
	})
}
