// Command solo runs the simulation headless: a scripted input profile is
// fed through the deterministic world at a fixed tick rate, the per-tick
// determinism hash is journaled, and the final score goes into the local
// high-score database. Useful for soak runs and for producing reference
// journals to diff against a client build.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"skyhopper/internal/clock"
	"skyhopper/internal/core/mathx"
	"skyhopper/internal/persistence/journal"
	"skyhopper/internal/persistence/scores"
	"skyhopper/internal/sim"
	"skyhopper/internal/sim/tuning"
)

func main() {
	var (
		seed       = flag.String("seed", "solo", "world seed string")
		ticks      = flag.Int64("ticks", 36000, "ticks to simulate (at 60 TPS, 36000 is ten minutes)")
		realtime   = flag.Bool("realtime", false, "pace the run at the tick rate instead of flat out")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (empty: built-in defaults)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		player     = flag.String("player", "solo", "player id for the high-score table")
		noJournal  = flag.Bool("no_journal", false, "skip writing the tick journal")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[solo] ", log.LstdFlags|log.Lmicroseconds)

	tune := tuning.Default()
	if tp := strings.TrimSpace(*tuningPath); tp != "" {
		loaded, err := tuning.Load(tp)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = loaded
	}

	world := sim.NewWorld(&tune, *seed)

	var jw *journal.Writer
	if !*noJournal {
		matchID := fmt.Sprintf("solo-%s-%d", *seed, time.Now().Unix())
		var err error
		jw, err = journal.NewWriter(filepath.Join(*dataDir, "journals"), matchID)
		if err != nil {
			logger.Fatalf("open journal: %v", err)
		}
		defer jw.Close()
		logger.Printf("journal: %s.jsonl.zst", matchID)
	}

	step := func(tick int64, dt float64) {
		// A gentle weave with periodic jumps keeps the run alive for a
		// while without being replay-sensitive to wall time.
		in := sim.Input{
			Tick:  sim.Tick(tick),
			AxisX: mathx.Deadzone(math.Sin(float64(tick)*0.02), tune.Input.Deadzone),
			Jump:  tick%180 == 0,
		}
		world.Step(in)
		if jw != nil {
			err := jw.Write(journal.Entry{
				Tick:   int64(world.Tick),
				Hash:   fmt.Sprintf("%016x", world.Hash()),
				Score:  world.Score,
				Events: world.DrainEvents(),
			})
			if err != nil {
				logger.Fatalf("journal write: %v", err)
			}
		} else {
			world.DrainEvents()
		}
	}

	start := time.Now()
	if *realtime {
		c := clock.New(tune.TPS, step)
		for int64(world.Tick) < *ticks {
			c.Advance(time.Now())
			time.Sleep(time.Millisecond)
		}
	} else {
		for tick := int64(0); tick < *ticks; tick++ {
			step(tick, 1.0/float64(tune.TPS))
			if world.Player.State == sim.StateDead {
				break
			}
		}
	}
	elapsed := time.Since(start)

	logger.Printf("seed=%s ticks=%d score=%d hash=%016x elapsed=%s",
		*seed, world.Tick, world.Score, world.Hash(), elapsed.Round(time.Millisecond))

	store, err := scores.Open(filepath.Join(*dataDir, "scores.db"))
	if err != nil {
		logger.Fatalf("open score db: %v", err)
	}
	defer store.Close()
	if err := store.RecordScore(context.Background(), *player, *seed, world.Score); err != nil {
		logger.Fatalf("record score: %v", err)
	}
	best, _, err := store.Best(context.Background(), *player, *seed)
	if err != nil {
		logger.Fatalf("read best: %v", err)
	}
	logger.Printf("best for %s on %s: %d", *player, *seed, best)
}
