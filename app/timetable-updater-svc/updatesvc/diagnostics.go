package updatesvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	logger "log"

	"github.com/otptransit/timetablecore/business/data/timetable"
)

// defaultHandler responds OK to the root path, used as a liveness check.
type defaultHandler struct{}

func (h *defaultHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

// statsHandler reports the current snapshot's overlay counts. It never
// reveals trip-level detail, matching the diagnostics boundary the snapshot
// itself enforces.
type statsHandler struct {
	log       *logger.Logger
	container *timetable.SnapshotContainer
}

func (h *statsHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	stats := h.container.Current().Stats()
	data, err := json.Marshal(stats)
	if err != nil {
		h.log.Printf("error marshaling snapshot stats: %v", err)
		http.Error(w, "error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		h.log.Printf("error writing stats response: %v", err)
	}
}

func createServer(log *logger.Logger, container *timetable.SnapshotContainer, httpPort int) *http.Server {
	r := mux.NewRouter()
	r.Handle("/", &defaultHandler{})
	r.Handle("/stats", &statsHandler{log: log, container: container})

	return &http.Server{
		Addr:         strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      r,
	}
}

// runWebService starts the diagnostics web service and terminates on
// shutdownSignal.
func runWebService(log *logger.Logger, wg *sync.WaitGroup, container *timetable.SnapshotContainer, httpPort int, shutdownSignal chan bool) {
	wg.Add(1)
	defer wg.Done()
	srv := createServer(log, container, httpPort)
	log.Printf("starting diagnostics server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("diagnostics server ListenAndServe ended: %s", err)
		}
	}()

	<-shutdownSignal
	log.Printf("ending diagnostics server on shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down diagnostics server: %s", err)
	}
}
