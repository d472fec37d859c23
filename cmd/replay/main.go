// Command replay inspects tick journals. With one journal it prints a
// summary; with two it reports the first tick whose determinism hash
// differs, which is where two peers' simulations split.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"skyhopper/internal/persistence/journal"
)

func main() {
	var (
		a = flag.String("a", "", "journal path (required)")
		b = flag.String("b", "", "second journal path (optional, enables diff)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", 0)

	if *a == "" {
		logger.Fatal("usage: replay -a match.jsonl.zst [-b other.jsonl.zst]")
	}

	ja, err := readJournal(*a)
	if err != nil {
		logger.Fatalf("read %s: %v", *a, err)
	}
	summarize(logger, *a, ja)

	if *b == "" {
		return
	}
	jb, err := readJournal(*b)
	if err != nil {
		logger.Fatalf("read %s: %v", *b, err)
	}
	summarize(logger, *b, jb)

	if tick := journal.FirstDivergence(ja, jb); tick >= 0 {
		logger.Fatalf("DIVERGED at tick %d", tick)
	}
	logger.Printf("journals agree over their common prefix")
}

func readJournal(path string) ([]journal.Entry, error) {
	dir := filepath.Dir(path)
	match := strings.TrimSuffix(filepath.Base(path), ".jsonl.zst")
	return journal.Read(dir, match)
}

func summarize(logger *log.Logger, path string, entries []journal.Entry) {
	if len(entries) == 0 {
		logger.Printf("%s: empty", filepath.Base(path))
		return
	}
	last := entries[len(entries)-1]
	logger.Printf("%s: %d ticks, final score %d, final hash %s",
		filepath.Base(path), len(entries), last.Score, last.Hash)
}
