// internal/handlers/game_server.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/middleware"
	"github.com/jason-s-yu/uno/internal/models"
	"github.com/sirupsen/logrus"
)

// GameServer connects clients to the one game it hosts and fans state out to them.
type GameServer struct {
	Game *game.UnoGame

	log          logrus.FieldLogger
	writeTimeout time.Duration

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

// session is a joined client.
type session struct {
	playerID uuid.UUID
	conn     Conn
	log      logrus.FieldLogger

	writeMu      sync.Mutex
	writeTimeout time.Duration
}

// send writes msg with the write timeout. Concurrent sends are serialized.
func (s *session) send(msg ServerMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	return s.conn.Write(ctx, msg)
}

func NewGameServer(g *game.UnoGame, logger logrus.FieldLogger, writeTimeout time.Duration) *GameServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GameServer{
		Game:         g,
		log:          logger,
		writeTimeout: writeTimeout,
		sessions:     make(map[uuid.UUID]*session),
	}
}

// SessionCount is the number of joined, still connected clients.
func (gs *GameServer) SessionCount() int {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return len(gs.sessions)
}

// Serve runs one connection until the client leaves, the connection fails or ctx is cancelled.
// It is the job a pool worker runs for the lifetime of the connection.
func (gs *GameServer) Serve(ctx context.Context, conn Conn) {
	start := time.Now()
	log := gs.log.WithFields(logrus.Fields{"remote": conn.RemoteAddr(), "transport": conn.Transport()})
	middleware.LogConnect(gs.log, conn.Transport(), conn.RemoteAddr())

	// unblock any pending read once the server stops
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	err := gs.serve(ctx, conn, log)
	middleware.LogDisconnect(gs.log, conn.Transport(), conn.RemoteAddr(), time.Since(start), err)
}

func (gs *GameServer) serve(ctx context.Context, conn Conn, log logrus.FieldLogger) error {
	sess, err := gs.handshake(ctx, conn, log)
	if err != nil {
		return err
	}
	defer gs.leave(sess)
	gs.broadcastState()

	for {
		msg, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, ErrMalformedFrame) {
				if werr := sess.send(errorMessage(err)); werr != nil {
					sess.log.WithError(werr).Warn("Failed to send error reply.")
				}
			}
			return err
		}
		gs.dispatch(sess, msg)
	}
}

// handshake waits for a successful join. Pings are answered and a bad name may be retried;
// any other failure ends the connection.
func (gs *GameServer) handshake(ctx context.Context, conn Conn, log logrus.FieldLogger) (*session, error) {
	reply := func(msg ServerMessage) error {
		wctx, cancel := context.WithTimeout(ctx, gs.writeTimeout)
		defer cancel()
		return conn.Write(wctx, msg)
	}

	for {
		msg, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, ErrMalformedFrame) {
				if werr := reply(errorMessage(err)); werr != nil {
					log.WithError(werr).Warn("Failed to send error reply.")
				}
			}
			return nil, err
		}

		switch msg.Type {
		case MsgPing:
			if err := reply(pongMessage()); err != nil {
				return nil, err
			}
			continue
		case MsgJoin:
		default:
			err := fmt.Errorf("%w: join first", game.ErrBadRequest)
			if werr := reply(errorMessage(err)); werr != nil {
				return nil, werr
			}
			continue
		}

		res, err := gs.Game.Join(msg.Name)
		if err != nil {
			log.WithError(err).Info("Join rejected.")
			if werr := reply(errorMessage(err)); werr != nil {
				return nil, werr
			}
			if errors.Is(err, game.ErrBadRequest) {
				continue
			}
			return nil, err
		}

		sess := &session{
			playerID:     res.PlayerID,
			conn:         conn,
			log:          log.WithField("player", res.PlayerID),
			writeTimeout: gs.writeTimeout,
		}
		if err := sess.send(joinedMessage(res)); err != nil {
			gs.Game.HandleDisconnect(res.PlayerID)
			return nil, err
		}

		gs.mu.Lock()
		gs.sessions[sess.playerID] = sess
		gs.mu.Unlock()
		sess.log.Infof("Player %q seated at turn index %d.", msg.Name, res.TurnIndex)
		return sess, nil
	}
}

// dispatch handles one message from a joined client.
func (gs *GameServer) dispatch(sess *session, msg ClientMessage) {
	switch msg.Type {
	case MsgPlay:
		if msg.Card == nil {
			gs.reject(sess, fmt.Errorf("%w: play needs a card", game.ErrBadRequest))
			return
		}
		out, err := gs.Game.Play(sess.playerID, models.Move{Card: *msg.Card, ChosenColor: msg.Color})
		if err != nil {
			gs.reject(sess, err)
			return
		}
		sess.log.Debugf("Played %v.", out.Card)
		if out.GameOver {
			gs.broadcastGameOver(out.Winner)
			return
		}
		gs.broadcastState()

	case MsgDraw:
		cards, err := gs.Game.DrawAndPass(sess.playerID)
		if err != nil {
			gs.reject(sess, err)
			return
		}
		if err := sess.send(drawnMessage(cards)); err != nil {
			sess.log.WithError(err).Warn("Failed to send drawn cards.")
		}
		gs.broadcastState()

	case MsgState:
		snap := gs.Game.Snapshot()
		if err := sess.send(stateMessage(snap.For(sess.playerID))); err != nil {
			sess.log.WithError(err).Warn("Failed to send state.")
		}

	case MsgPing:
		if err := sess.send(pongMessage()); err != nil {
			sess.log.WithError(err).Warn("Failed to send pong.")
		}

	case MsgJoin:
		gs.reject(sess, fmt.Errorf("%w: already joined", game.ErrBadRequest))

	default:
		gs.reject(sess, fmt.Errorf("%w: unknown message type %q", game.ErrBadRequest, msg.Type))
	}
}

// reject reports err to the client that caused it. Nobody else hears about it.
func (gs *GameServer) reject(sess *session, err error) {
	if game.Recoverable(err) {
		sess.log.WithError(err).Debug("Request rejected.")
	} else {
		sess.log.WithError(err).Error("Request failed on a broken game.")
	}
	if werr := sess.send(errorMessage(err)); werr != nil {
		sess.log.WithError(werr).Warn("Failed to send error.")
	}
}

// leave unregisters the session and hands the seat over to the disconnect rules.
func (gs *GameServer) leave(sess *session) {
	gs.mu.Lock()
	delete(gs.sessions, sess.playerID)
	gs.mu.Unlock()

	gs.Game.HandleDisconnect(sess.playerID)
	gs.broadcastState()
}

func (gs *GameServer) broadcastState() {
	snap := gs.Game.Snapshot()
	gs.broadcast(func(id uuid.UUID) ServerMessage {
		return stateMessage(snap.For(id))
	})
}

func (gs *GameServer) broadcastGameOver(winner uuid.UUID) {
	snap := gs.Game.Snapshot()
	gs.broadcast(func(id uuid.UUID) ServerMessage {
		return gameOverMessage(winner, snap.For(id))
	})
}

// broadcast sends every session its own message. The game lock is never held here;
// a slow client delays the sender by at most the write timeout.
func (gs *GameServer) broadcast(build func(playerID uuid.UUID) ServerMessage) {
	gs.mu.RLock()
	targets := make([]*session, 0, len(gs.sessions))
	for _, s := range gs.sessions {
		targets = append(targets, s)
	}
	gs.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range targets {
		wg.Add(1)
		go func(s *session) {
			defer wg.Done()
			if err := s.send(build(s.playerID)); err != nil {
				s.log.WithError(err).Warn("Failed to push update.")
			}
		}(s)
	}
	wg.Wait()
}
