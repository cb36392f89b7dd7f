package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/folioapp/folio-server/internal/clock"
	"github.com/folioapp/folio-server/internal/domain"
	"github.com/folioapp/folio-server/internal/store"
	"github.com/folioapp/folio-server/internal/store/sqlite"
	"github.com/folioapp/folio-server/internal/util"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/Folio/data/badger")
	}

	var kv store.KV
	var err error
	if filepath.Ext(dbPath) == ".db" {
		kv, err = sqlite.Open(dbPath, nil)
	} else {
		kv, err = store.OpenBadgerReadOnly(dbPath)
	}
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	s := store.New(kv, nil)
	defer s.Close()

	ctx := context.Background()

	fmt.Println("=== Database Inspection ===")
	fmt.Println()

	bookIDs, err := s.BookIDs(ctx)
	if err != nil {
		log.Fatalf("Failed to list books: %v", err)
	}
	slices.Sort(bookIDs)

	stats, err := s.LoadStudyStats(ctx)
	if err != nil {
		log.Fatalf("Failed to load study stats: %v", err)
	}

	now := time.Now()
	fmt.Printf("Today: %s\n\n", clock.DayKey(now, time.Local))

	totalHighlights, totalAnnotations, orphans := 0, 0, 0
	for _, bookID := range bookIDs {
		highlights, err := s.LoadHighlights(ctx, bookID)
		if err != nil {
			log.Fatalf("Failed to load highlights for %s: %v", bookID, err)
		}
		annotations, err := s.LoadAnnotations(ctx, bookID)
		if err != nil {
			log.Fatalf("Failed to load annotations for %s: %v", bookID, err)
		}

		replies := 0
		for _, a := range annotations {
			replies += len(a.Replies)
			if domain.IndexHighlight(highlights, a.HighlightID) < 0 {
				orphans++
			}
		}
		totalHighlights += len(highlights)
		totalAnnotations += len(annotations)

		fmt.Printf("Book: %s\n", bookID)
		fmt.Printf("  Highlights:  %d\n", len(highlights))
		fmt.Printf("  Annotations: %d (%d replies)\n", len(annotations), replies)

		if data := stats[bookID]; data != nil {
			fmt.Printf("  Sessions:    %d\n", len(data.Sessions))
			fmt.Printf("  Today:       %s\n", util.FormatStudyDuration(domain.TodayTotal(data.Sessions, 0, now, time.Local)))
			fmt.Printf("  This week:   %s\n", util.FormatStudyDuration(domain.WeekTotal(data.Sessions, 0, now, time.Local)))
			if cur := data.CurrentSession; cur != nil {
				fmt.Printf("  Open session: %s, %d pages, last active %s\n",
					util.FormatStudyDuration(cur.Duration),
					cur.PagesRead,
					util.FormatRelative(cur.LastActiveTime, now))
			}
		}
		fmt.Println()
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Books:              %d\n", len(bookIDs))
	fmt.Printf("Highlights:         %d\n", totalHighlights)
	fmt.Printf("Annotations:        %d\n", totalAnnotations)
	fmt.Printf("Orphan annotations: %d\n", orphans)
	fmt.Printf("Books with study data: %d\n", len(stats))
}
