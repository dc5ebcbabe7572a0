package api

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/dgallion1/docpen/internal/editor"
)

const (
	pingPeriod   = 20 * time.Second
	writeTimeout = 10 * time.Second
)

// handleEvents streams every change of a document over a websocket. The
// first message is the current state with command "snapshot".
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ed := s.editorFor(w, r)
	if ed == nil {
		return
	}
	// The feed outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Error("open websocket connection", "doc_id", ed.ID(), "error", err)
		return
	}
	defer c.CloseNow()

	changes, unsubscribe := ed.Subscribe(64)
	defer unsubscribe()

	log := s.log.With("doc_id", ed.ID())
	log.Info("change feed opened")
	defer log.Info("change feed closed")

	// Read until close; the client never sends data.
	ctx := c.CloseRead(r.Context())

	first := editor.Change{Version: ed.Version(), Command: "snapshot", Doc: ed.Snapshot()}
	if err := writeEvent(ctx, c, first); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			return
		case change, ok := <-changes:
			if !ok {
				c.Close(websocket.StatusGoingAway, "document closed")
				return
			}
			if err := writeEvent(ctx, c, change); err != nil {
				log.Debug("change feed write failed", "error", err)
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pctx)
			cancel()
			if err != nil {
				log.Debug("change feed ping failed", "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, c *websocket.Conn, change editor.Change) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, change)
}
