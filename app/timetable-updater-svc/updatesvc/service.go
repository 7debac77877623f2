// Package updatesvc wires together the three subsystems of the timetable
// updater: the real-time update listener, the diagnostics web service, and
// the background overlay-pruning job. It mirrors the parent gtfs-tripupdate
// service's orchestration, generalized to the snapshot/container domain.
package updatesvc

import (
	logger "log"
	"os"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/otptransit/timetablecore/business/data/gtfsrt"
	"github.com/otptransit/timetablecore/business/data/timetable"
)

// Config carries everything StartServices needs beyond the runtime
// dependencies it's handed directly.
type Config struct {
	HTTPPort      int
	RTSubject     string
	PruneSchedule string
	PruneRetain   int
}

// StartServices brings up the update listener, diagnostics server, and prune
// job. It blocks until shutdownSignal fires, then stops every subroutine and
// waits for them to exit before returning.
func StartServices(
	log *logger.Logger,
	cfg Config,
	natsConn *nats.Conn,
	decoder *gtfsrt.Decoder,
	applier *timetable.UpdateApplier,
	container *timetable.SnapshotContainer,
	shutdownSignal chan os.Signal,
) {
	wg := sync.WaitGroup{}

	listenerShutdown := make(chan bool, 1)
	webServiceShutdown := make(chan bool, 1)

	go runUpdateListener(log, &wg, natsConn, decoder, applier, cfg.RTSubject, listenerShutdown)
	go runWebService(log, &wg, container, cfg.HTTPPort, webServiceShutdown)

	pruneCron, err := startPruneJob(log, container, cfg.PruneSchedule, cfg.PruneRetain)
	if err != nil {
		log.Printf("error starting prune job, overlays will not be pruned: %v", err)
	}

	<-shutdownSignal
	log.Printf("exiting on shutdown signal, shutting down subroutines")
	listenerShutdown <- true
	webServiceShutdown <- true
	if pruneCron != nil {
		pruneCtx := pruneCron.Stop()
		<-pruneCtx.Done()
	}
	wg.Wait()
	log.Printf("subroutines shut down, exiting timetable updater service")
}
