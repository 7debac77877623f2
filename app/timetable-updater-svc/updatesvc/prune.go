package updatesvc

import (
	logger "log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/otptransit/timetablecore/business/data/timetable"
)

// startPruneJob schedules a recurring job that drops overlay entries for
// service dates more than retainDays in the past, so snapshot memory tracks
// update churn rather than the full history of every date ever touched.
// It returns the cron.Cron so the caller can stop it on shutdown.
func startPruneJob(log *logger.Logger, container *timetable.SnapshotContainer, schedule string, retainDays int) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		cutoff := timetable.NewServiceDate(time.Now().AddDate(0, 0, -retainDays))
		if err := container.PruneServiceDatesBefore(cutoff); err != nil {
			log.Printf("error pruning snapshot before %s: %v", cutoff, err)
			return
		}
		log.Printf("pruned overlay entries before service date %s", cutoff)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
