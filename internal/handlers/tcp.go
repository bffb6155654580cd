// internal/handlers/tcp.go
package handlers

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jason-s-yu/uno/internal/pool"
	"github.com/sirupsen/logrus"
)

// TCPGateway accepts stream connections and queues each one on the worker pool.
type TCPGateway struct {
	server      *GameServer
	pool        *pool.Pool
	idleTimeout time.Duration
	log         logrus.FieldLogger
}

func NewTCPGateway(server *GameServer, p *pool.Pool, idleTimeout time.Duration, logger logrus.FieldLogger) *TCPGateway {
	return &TCPGateway{
		server:      server,
		pool:        p,
		idleTimeout: idleTimeout,
		log:         logger.WithField("gw", "tcp"),
	}
}

// ListenAndServe binds addr and serves until ctx is cancelled.
func (gw *TCPGateway) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	gw.log.Infof("Listening on tcp:%v", ln.Addr())
	return gw.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled, which closes ln. A clean shutdown returns nil.
func (gw *TCPGateway) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				gw.log.Info("Listener closed.")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				gw.log.WithError(err).Warn("Temporary accept error.")
				continue
			}
			return err
		}

		c := NewTCPConn(conn, gw.idleTimeout)
		if err := gw.pool.Submit(func(jobCtx context.Context) {
			gw.server.Serve(jobCtx, c)
		}); err != nil {
			gw.log.WithError(err).Warnf("Dropping connection from %v.", conn.RemoteAddr())
			conn.Close()
			continue
		}
		if pending := gw.pool.Pending(); pending > 0 {
			gw.log.Debugf("%d connection(s) waiting for a worker.", pending)
		}
	}
}
