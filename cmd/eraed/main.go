package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/Ziforge/Erae-2-API-Interface/erae"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

var cfgFile = flag.String("f", "", "load configuration from TOML `file`")
var connTo = flag.String("c", "", "connection string, use socket://[host]:[port] for TCP or [serialDevice] for a direct serial MIDI connection")
var httpServe = flag.String("s", "", "start http server at [bindtohost][:]port")
var verbose = flag.Bool("v", false, "verbose logging")

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var conn *erae.Device
var events *eventLog

// To be set via go build -ldflags "-X main.buildVersion=$(git describe --dirty) -X main.buildDate=$(date -u +%FT%TZ)"
var buildVersion = "unspecified"
var buildDate = "unknown"

const queryTimeout = 2 * time.Second

// eventLog keeps the most recent finger events for the HTTP API and logs
// everything else. It is the daemon's ReplyHandler.
type eventLog struct {
	mu     sync.Mutex
	events []erae.FingerEvent
}

const eventLogSize = 256

func (l *eventLog) FingerDetection(ev erae.FingerEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	if len(l.events) > eventLogSize {
		l.events = l.events[len(l.events)-eventLogSize:]
	}
	l.mu.Unlock()
	log.Debugf("finger %d zone %d %v x=%v y=%v z=%v", ev.FingerID, ev.Zone, ev.Action, ev.X, ev.Y, ev.Z)
}

func (l *eventLog) ZoneBoundaryReply(zb erae.ZoneBoundary) {
	if !zb.Valid() {
		log.Infof("zone %d: no such zone", zb.Zone)
		return
	}
	log.Infof("zone %d: %dx%d", zb.Zone, zb.Width, zb.Height)
}

func (l *eventLog) APIVersion(version byte) {
	log.Infof("api version %d", version)
}

func (l *eventLog) recent() []erae.FingerEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]erae.FingerEvent(nil), l.events...)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	e := json.NewEncoder(w)
	e.SetIndent("", "    ")
	e.Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(code)
	w.Write([]byte(err.Error()))
}

func zoneID(r *http.Request) (byte, error) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 0 || id > 0x7f {
		return 0, fmt.Errorf("zone id must be in 0..127")
	}
	return byte(id), nil
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	v := struct {
		Version   string `json:"version"`
		BuildDate string `json:"build_date"`
	}{Version: buildVersion, BuildDate: buildDate}
	writeJSON(w, v)
}

func deviceVersion(w http.ResponseWriter, r *http.Request) {
	v, err := conn.QueryAPIVersion(queryTimeout)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err)
		return
	}
	writeJSON(w, struct {
		APIVersion byte `json:"api_version"`
	}{v})
}

func getZone(w http.ResponseWriter, r *http.Request) {
	id, err := zoneID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	zb, err := conn.QueryZoneBoundary(id, queryTimeout)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err)
		return
	}
	if !zb.Valid() {
		writeError(w, http.StatusNotFound, fmt.Errorf("no such zone %d", id))
		return
	}
	writeJSON(w, zb)
}

func clearZone(w http.ResponseWriter, r *http.Request) {
	id, err := zoneID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := conn.ClearZone(id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, "OK")
}

func drawPixel(w http.ResponseWriter, r *http.Request) {
	id, err := zoneID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		X byte `json:"x"`
		Y byte `json:"y"`
		R byte `json:"r"`
		G byte `json:"g"`
		B byte `json:"b"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := conn.DrawPixel(id, req.X, req.Y, req.R, req.G, req.B); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, "OK")
}

func drawRect(w http.ResponseWriter, r *http.Request) {
	id, err := zoneID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		X byte `json:"x"`
		Y byte `json:"y"`
		W byte `json:"w"`
		H byte `json:"h"`
		R byte `json:"r"`
		G byte `json:"g"`
		B byte `json:"b"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := conn.DrawRectangle(id, req.X, req.Y, req.W, req.H, req.R, req.G, req.B); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, "OK")
}

func drawImage(w http.ResponseWriter, r *http.Request) {
	id, err := zoneID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		X   byte   `json:"x"`
		Y   byte   `json:"y"`
		W   byte   `json:"w"`
		H   byte   `json:"h"`
		RGB string `json:"rgb"` // base64, 3 bytes per pixel, row-major
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rgb, err := base64.StdEncoding.DecodeString(req.RGB)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := conn.DrawImage(id, req.X, req.Y, req.W, req.H, rgb); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, "OK")
}

func getEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, events.recent())
}

func main() {
	flag.Parse()

	if *verbose == true {
		log.SetLevel(log.DebugLevel)
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	}

	cfg := defaultConfig()
	if *cfgFile != "" {
		var err error
		cfg, err = loadConfig(*cfgFile)
		if err != nil {
			log.Fatal(err)
		}
	}
	if *connTo != "" {
		cfg.Connection = *connTo
	}
	if *httpServe != "" {
		cfg.Listen = *httpServe
	}

	if cfg.Connection == "" {
		log.Fatal("Need connection string in -c option or config file")
		os.Exit(1)
	}
	variant, err := cfg.variant()
	if err != nil {
		log.Fatal(err)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	done := make(chan os.Signal, 1)

	signal.Notify(done,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	go func() {
		<-done

		conn.DisableAPIMode()
		conn.Close()

		if *memprofile != "" {
			f, err := os.Create(*memprofile)
			if err != nil {
				log.Fatal("could not create memory profile: ", err)
			}
			runtime.GC() // get up-to-date statistics
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Fatal("could not write memory profile: ", err)
			}
			f.Close()
		}
		if *cpuprofile != "" {
			pprof.StopCPUProfile()
		}
		os.Exit(0)
	}()

	conn = erae.NewDevice(variant, cfg.ReceiverPrefix)
	conn.SetBaud(cfg.Baud)
	events = &eventLog{}
	conn.SetHandler(events)

	if err := conn.Connect(cfg.Connection); err != nil {
		log.Fatal(err)
	}
	log.Infof("Connected %v via %s", variant, cfg.Connection)

	if err := conn.EnableAPIMode(); err != nil {
		log.Error(err)
	}
	if v, err := conn.QueryAPIVersion(queryTimeout); err != nil {
		log.Warnf("api version query: %v", err)
	} else {
		log.Infof("Device speaks API version %d", v)
	}

	if cfg.Listen != "" {
		router := mux.NewRouter()

		router.HandleFunc("/version", versionInfo).Methods("GET")
		router.HandleFunc("/device/version", deviceVersion).Methods("GET")
		router.HandleFunc("/events", getEvents).Methods("GET")
		router.HandleFunc("/zones/{id}", getZone).Methods("GET")
		router.HandleFunc("/zones/{id}/clear", clearZone).Methods("POST")
		router.HandleFunc("/zones/{id}/pixel", drawPixel).Methods("POST")
		router.HandleFunc("/zones/{id}/rect", drawRect).Methods("POST")
		router.HandleFunc("/zones/{id}/image", drawImage).Methods("POST")

		// accept :[portnum] as well as [portnum]
		if i, err := strconv.Atoi(cfg.Listen); err == nil {
			cfg.Listen = fmt.Sprintf(":%d", i)
		}

		h := &http.Server{Addr: cfg.Listen, Handler: router}
		go func() { log.Error(h.ListenAndServe()) }()
	}

	for {
		<-conn.Done
		<-time.After(3 * time.Second)
		err := conn.Reconnect()
		if err != nil {
			log.Error(err)
		} else {
			log.Infof("Reconnected")
			if err := conn.EnableAPIMode(); err != nil {
				log.Error(err)
			}
		}
	}
}
