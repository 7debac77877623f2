package updatesvc

import (
	logger "log"
	"os"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/otptransit/timetablecore/business/data/gtfsrt"
	"github.com/otptransit/timetablecore/business/data/timetable"
)

// runUpdateListener subscribes to rtSubject for raw GTFS-RT FeedMessage
// bytes, decodes each message with decoder, and applies the resulting
// UpdateBatch through applier. It ends its NATS subscription and returns on
// shutdownSignal.
func runUpdateListener(
	log *logger.Logger,
	wg *sync.WaitGroup,
	natsConn *nats.Conn,
	decoder *gtfsrt.Decoder,
	applier *timetable.UpdateApplier,
	rtSubject string,
	shutdownSignal chan bool) {
	wg.Add(1)
	defer wg.Done()

	ch := make(chan *nats.Msg, 64)
	log.Printf("subscribing to real-time updates on subject:%s on nats: %v\n", rtSubject, natsConn.Servers())
	sub, err := natsConn.ChanSubscribe(rtSubject, ch)
	if err != nil {
		log.Printf("unable to establish subscription to nats server: %v\n", err)
		os.Exit(1)
	}

	for {
		select {
		case msg := <-ch:
			processUpdateMessage(log, msg, decoder, applier)
		case <-shutdownSignal:
			log.Printf("ending update listener on shutdown signal\n")
			if err := sub.Unsubscribe(); err != nil {
				log.Printf("error unsubscribing from nats: %s", err)
			}
			return
		}
	}
}

func processUpdateMessage(log *logger.Logger, msg *nats.Msg, decoder *gtfsrt.Decoder, applier *timetable.UpdateApplier) {
	batch, err := decoder.Decode(msg.Data)
	if err != nil {
		log.Printf("error decoding real-time message: %v", err)
		return
	}
	if len(batch.Records) == 0 {
		return
	}

	result, err := applier.Apply(batch)
	if err != nil {
		log.Printf("batch %s discarded: %v", batch.ID, err)
		return
	}

	rejected := 0
	for _, r := range result.Records {
		if !r.Success {
			rejected++
		}
	}
	if rejected > 0 {
		log.Printf("batch %s applied with %d of %d records rejected", batch.ID, rejected, len(result.Records))
	}
}
