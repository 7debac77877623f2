package cmd

import (
	"fmt"
	logger "log"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/otptransit/timetablecore/business/data/scheduleload"
	"github.com/otptransit/timetablecore/business/data/timetable"
)

var (
	dumpDate    string
	dumpUpdates string
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Prints a schedule summary and, with --updates, a snapshot's pattern-day overlay count",
	RunE:  dump,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpDate, "date", "", "service date (YYYY-MM-DD) to report active service codes for, defaults to today")
	dumpCmd.Flags().StringVar(&dumpUpdates, "updates", "", "optional UpdateBatch JSON file to apply before reporting snapshot stats")
}

func dump(cmd *cobra.Command, args []string) error {
	graph, err := loadGraph()
	if err != nil {
		return err
	}

	date := timetable.NewServiceDate(time.Now())
	if dumpDate != "" {
		parsed, err := time.Parse("2006-01-02", dumpDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", dumpDate, err)
		}
		date = timetable.NewServiceDate(parsed)
	}

	patternIDs := make([]string, 0, len(graph.Patterns))
	tripCount := 0
	for id, pattern := range graph.Patterns {
		patternIDs = append(patternIDs, id)
		tripCount += pattern.Scheduled.Len()
	}
	sort.Strings(patternIDs)

	fmt.Printf("feed %s: %d patterns, %d scheduled trips\n", graph.FeedID, len(patternIDs), tripCount)
	for _, id := range patternIDs {
		pattern := graph.Patterns[id]
		fmt.Printf("  %s  route=%s  stops=%d  trips=%d\n",
			id, pattern.RouteID, len(pattern.StopPattern.StopIDs), pattern.Scheduled.Len())
	}

	active := graph.Calendar.ActiveServiceCodes(date)
	fmt.Printf("active service codes on %s: %v\n", date, active)

	if dumpUpdates == "" {
		return nil
	}

	batch, err := readUpdateBatch(dumpUpdates)
	if err != nil {
		return err
	}

	log := logger.New(os.Stderr, "DUMP : ", logger.LstdFlags)
	container := timetable.NewSnapshotContainer()
	applier := timetable.NewUpdateApplier(container, graph,
		scheduleload.NewSynthesizedPatternFactory(graph.Dedup), log)
	if _, err := applier.Apply(batch); err != nil {
		return fmt.Errorf("batch %s discarded: %w", batch.ID, err)
	}

	stats := container.Current().Stats()
	fmt.Printf("snapshot stats after batch %s: %d overlaid pattern-days, %d synthesized patterns\n",
		batch.ID, stats.OverlaidPatternDays, stats.SynthesizedPatterns)

	return nil
}
