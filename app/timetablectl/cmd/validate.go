package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	logger "log"
	"os"

	"github.com/spf13/cobra"

	"github.com/otptransit/timetablecore/business/data/scheduleload"
	"github.com/otptransit/timetablecore/business/data/timetable"
)

var updatesFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Applies an UpdateBatch JSON file against a loaded schedule and reports per-record results",
	RunE:  validate,
}

func init() {
	validateCmd.Flags().StringVar(&updatesFile, "updates", "", "path to an UpdateBatch JSON file (required)")
	_ = validateCmd.MarkFlagRequired("updates")
}

func validate(cmd *cobra.Command, args []string) error {
	graph, err := loadGraph()
	if err != nil {
		return err
	}

	batch, err := readUpdateBatch(updatesFile)
	if err != nil {
		return err
	}

	log := logger.New(os.Stderr, "VALIDATE : ", logger.LstdFlags)
	container := timetable.NewSnapshotContainer()
	applier := timetable.NewUpdateApplier(container, graph,
		scheduleload.NewSynthesizedPatternFactory(graph.Dedup), log)

	result, err := applier.Apply(batch)
	if err != nil {
		return fmt.Errorf("batch %s discarded: %w", batch.ID, err)
	}

	rejected := 0
	for _, r := range result.Records {
		if r.Success {
			continue
		}
		rejected++
		fmt.Printf("record %d (trip %s): rejected, reason=%d: %v\n", r.Index, r.TripID, r.FailureReason, r.Err)
	}

	fmt.Printf("batch %s: %d records, %d rejected\n", batch.ID, len(result.Records), rejected)
	if rejected > 0 {
		return fmt.Errorf("validation found %d rejected record(s)", rejected)
	}
	return nil
}

func readUpdateBatch(path string) (*timetable.UpdateBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var batch timetable.UpdateBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parsing %s as UpdateBatch: %w", path, err)
	}
	if batch.ID == "" {
		batch.ID = "cli"
	}
	return &batch, nil
}
