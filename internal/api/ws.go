package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chainbound-labs/rollupwatch/internal/hub"
	"github.com/chainbound-labs/rollupwatch/internal/rollup"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the stream is read-only public data; origin checks belong to the
	// deployment's proxy layer
	CheckOrigin: func(r *http.Request) bool { return true },
}

// initialFrame is the first and only snapshot frame on a stream
// connection.
type initialFrame struct {
	Type      string                             `json:"type"`
	Sequencer map[rollup.ID]rollup.SequencerView `json:"sequencer"`
	Status    map[rollup.ID]rollup.Status        `json:"status"`
}

// laggedFrame tells a slow subscriber it silently lost events and should
// reconnect for a fresh snapshot.
type laggedFrame struct {
	Type string `json:"type"`
}

// handleStream upgrades to WebSocket, sends the coherent initial
// snapshot taken by hub.Subscribe, then forwards every broadcast event
// in order until the client goes away or the hub closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	statusSnap, seqSnap, sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)
	slog := s.log.New("subscriber", sub.ID().String())
	slog.Info("stream subscriber connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer conn.Close()

	// Reader side: nothing from the client is interpreted beyond
	// keepalive; the read loop exists to notice pongs and disconnects.
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})
	go func() {
		defer cancel()
		_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.writeFrame(conn, initialFrame{
		Type:      "initial",
		Sequencer: s.sequencerViews(seqSnap),
		Status:    statusSnap,
	}); err != nil {
		slog.Warn("failed to send initial snapshot", "err", err)
		return
	}

	pings := time.NewTicker(wsPingInterval)
	defer pings.Stop()

	deliveries := make(chan deliveryOrErr, 1)
	go pump(ctx, sub, deliveries)

	for {
		select {
		case <-ctx.Done():
			s.writeClose(conn)
			return
		case <-pings.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				slog.Debug("ping failed, dropping subscriber", "err", err)
				return
			}
		case d, ok := <-deliveries:
			if !ok || d.err != nil {
				// hub closed, shut the stream down gracefully
				s.writeClose(conn)
				slog.Info("stream subscriber closed")
				return
			}
			var frame any = d.delivery.Event
			if d.delivery.Lagged {
				frame = laggedFrame{Type: "lagged"}
				slog.Warn("stream subscriber lagged, oldest events dropped")
			}
			if err := s.writeFrame(conn, frame); err != nil {
				slog.Debug("write failed, dropping subscriber", "err", err)
				return
			}
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

func (s *Server) writeClose(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}

type deliveryOrErr struct {
	delivery hub.Delivery
	err      error
}

// pump feeds Subscription.Next results into a channel so the write loop
// can select across deliveries, pings and cancellation at once.
func pump(ctx context.Context, sub *hub.Subscription, out chan<- deliveryOrErr) {
	defer close(out)
	for {
		d, err := sub.Next(ctx)
		select {
		case out <- deliveryOrErr{delivery: d, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}
