// Package ws bridges websocket connections to sessions: inbound frames are
// decoded and enqueued, outbound frames are drained from a per-connection
// channel by a writer goroutine.
package ws

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mossvale/internal/protocol"
	"mossvale/internal/sim/session"
)

const (
	writeWait   = 5 * time.Second
	readWait    = 120 * time.Second
	outboundCap = 64
)

var errClientGone = errors.New("ws: client gone")

type Server struct {
	reg *session.Registry
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(reg *session.Registry, logger *log.Logger) *Server {
	return &Server{
		reg: reg,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.log.Printf("client connected: %s", conn.RemoteAddr())

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, outboundCap)
		sess := s.reg.NewSession(func(b []byte) error {
			select {
			case out <- b:
				return nil
			case <-ctx.Done():
				return errClientGone
			default:
				return errors.New("ws: outbound queue full")
			}
		})
		defer sess.Close()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop: one frame, one decode, one enqueue. Malformed frames
		// are dropped without touching the connection.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readWait))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			pkt, err := protocol.Decode(msg)
			if err != nil {
				s.log.Printf("client %s: dropping frame: %v", conn.RemoteAddr(), err)
				continue
			}
			sess.Enqueue(sess, pkt)
		}

		s.log.Printf("client disconnected: %s", conn.RemoteAddr())
	}
}
