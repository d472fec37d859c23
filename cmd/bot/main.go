// Command bot joins a relay room and plays on its own: it readies up,
// starts the match once it is master, and feeds a scripted input stream.
// Point several bots at one room to soak the lobby flow and snapshot
// fan-out without real clients.
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"time"

	"skyhopper/internal/core/mathx"
	"skyhopper/internal/netclient"
	"skyhopper/internal/protocol"
	"skyhopper/internal/sim"
	"skyhopper/internal/sim/tuning"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "relay ws url (add ?room=... to share a room)")
		name = flag.String("name", "bot", "player name")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	tune := tuning.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := netclient.NewStore()
	client := netclient.New(nil, store, logger)

	closed := make(chan error, 1)
	tr, err := netclient.DialWS(ctx, *url, logger, client.HandleMessage, func(err error) {
		closed <- err
	})
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer tr.Close()

	started := make(chan struct{})
	finished := make(chan struct{})
	client.SetHandlers(netclient.Handlers{
		Start:  func(*protocol.Start) { close(started) },
		Finish: func(f *protocol.Finish) { logger.Printf("finish: %s", f.Reason); close(finished) },
		Error: func(e *protocol.ErrorPayload) {
			logger.Printf("server error %s: %s", e.Code, e.Message)
		},
	})

	client.SetTransport(tr)
	if err := client.Join(*name, "bot/1", nil); err != nil {
		logger.Fatalf("join: %v", err)
	}
	if err := client.SetReady(true); err != nil {
		logger.Fatalf("ready: %v", err)
	}

	// If this bot ends up master, kick the match off once the roster is
	// ready.
	go func() {
		for {
			time.Sleep(500 * time.Millisecond)
			sess := store.Get()
			if sess.RoomState != protocol.RoomLobby || sess.Role != protocol.RoleMaster {
				continue
			}
			ready := len(sess.Players) > 0
			for _, p := range sess.Players {
				if !p.Ready {
					ready = false
				}
			}
			if ready {
				_ = client.RequestStart(3)
				return
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	select {
	case <-stop:
		return
	case err := <-closed:
		logger.Fatalf("connection lost: %v", err)
	case <-started:
	}
	logger.Printf("match started")

	sess := store.Get()
	tps := sess.Cfg.TPS
	if tps <= 0 {
		tps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(tps))
	defer ticker.Stop()

	var tick int64
	for {
		select {
		case <-stop:
			return
		case err := <-closed:
			logger.Fatalf("connection lost: %v", err)
		case <-finished:
			return
		case <-ticker.C:
			client.RecordInput(sim.Input{
				Tick:  sim.Tick(tick),
				AxisX: mathx.Deadzone(math.Sin(float64(tick)*0.02), tune.Input.Deadzone),
				Jump:  tick%180 == 0,
			})
			client.Tick()
			tick++
		}
	}
}
