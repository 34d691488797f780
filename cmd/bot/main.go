// A self-driving client for exercising a running server: registers (or
// reuses) an account, logs in, wanders between random targets, and tries to
// pick up anything it hears about.
package main

import (
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mossvale/internal/protocol"
)

// sender serializes outbound frames. The wander ticker and the delayed
// pickup goroutines all write to one connection, and the websocket allows
// a single writer at a time.
type sender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *sender) send(p protocol.Packet) error {
	b, err := protocol.Encode(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "account username")
		password = flag.String("password", "botpass", "account password")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	out := &sender{conn: conn}
	send := func(p protocol.Packet) {
		if err := out.send(p); err != nil {
			logger.Fatalf("send %s: %v", p.Action, err)
		}
	}

	// Register first; an already-taken name just means we made this account
	// on an earlier run.
	send(protocol.NewRegister(*name, *password, int64(rand.Intn(4))))
	send(protocol.NewLogin(*name, *password))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	wander := time.NewTicker(5 * time.Second)
	defer wander.Stop()
	go func() {
		for range wander.C {
			send(protocol.NewTarget(rand.Float64()*300, rand.Float64()*300))
		}
	}()

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Printf("read: %v", err)
			return
		}
		pkt, err := protocol.Decode(msg)
		if err != nil {
			logger.Printf("bad frame: %v", err)
			continue
		}
		switch pkt.Action {
		case protocol.ActionOk:
			logger.Printf("ok")
		case protocol.ActionDeny:
			logger.Printf("denied: %s", pkt.String(0))
		case protocol.ActionChat:
			logger.Printf("<%s> %s", pkt.String(0), pkt.String(1))
		case protocol.ActionItemSpawn:
			item := pkt.Model(0)
			logger.Printf("item spawned: %v", item["item"])
			if id, ok := item[protocol.KeyID].(float64); ok {
				if x, ok := item["x"].(float64); ok {
					if y, ok := item["y"].(float64); ok {
						// Walk over and try to grab it.
						send(protocol.NewTarget(x, y))
						go func(id int64) {
							time.Sleep(10 * time.Second)
							send(protocol.NewPickup(id))
						}(int64(id))
					}
				}
			}
		case protocol.ActionInventory:
			logger.Printf("inventory: %d stacks", len(pkt.Models(0)))
		case protocol.ActionModelDelta:
			logger.Printf("delta: %v", pkt.Model(0))
		case protocol.ActionItemRemove:
			logger.Printf("item %d removed", pkt.Int(0))
		case protocol.ActionDisconnect:
			logger.Printf("actor %d left", pkt.Int(0))
		}
	}
}
