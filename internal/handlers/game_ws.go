// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/uno/internal/pool"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "uno"

// GameWSHandler upgrades the request to a websocket and hands it to the worker pool,
// the same way the TCP gateway does. The handler returns once the session has ended.
func GameWSHandler(logger logrus.FieldLogger, gs *GameServer, p *pool.Pool, idleTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("WebSocket accept error from %s: %v", r.RemoteAddr, err)
			return
		}

		if c.Subprotocol() != Subprotocol {
			logger.Warnf("Client %s connected with invalid subprotocol: %q", r.RemoteAddr, c.Subprotocol())
			c.Close(BadSubprotocolError, "Client must use the 'uno' subprotocol.")
			return
		}

		conn := NewWSConn(c, r.RemoteAddr, idleTimeout)
		done := make(chan struct{})
		err = p.Submit(func(ctx context.Context) {
			defer close(done)
			gs.Serve(ctx, conn)
		})
		if err != nil {
			logger.WithError(err).Warnf("Dropping websocket from %s.", r.RemoteAddr)
			c.Close(ServerClosingError, "Server is shutting down.")
			return
		}
		<-done
	}
}
