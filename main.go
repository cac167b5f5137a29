// motorcal is the motor joint calibration daemon: it drives a safety-gated
// system-identification run over the controller's serial telemetry link (or
// a synthetic bench), records finished runs to SQLite and serves an HTTP
// API for run control, live status and reports.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/torqlab/motorcal/internal/calib"
	"github.com/torqlab/motorcal/internal/monitoring"
	"github.com/torqlab/motorcal/internal/sim"
	"github.com/torqlab/motorcal/internal/store"
	"github.com/torqlab/motorcal/internal/timeutil"
	"github.com/torqlab/motorcal/internal/units"
	"github.com/torqlab/motorcal/internal/version"
)

var (
	listen       = flag.String("listen", ":8080", "HTTP listen address")
	serialDevice = flag.String("serial", "/dev/ttyACM0", "Motor controller serial device")
	dbFile       = flag.String("db", "motorcal.db", "Run database path")
	displayUnits = flag.String("units", units.RadPerSec, "Default display units for velocity (rads, degs, rpm)")
	synthetic    = flag.Bool("synthetic", false, "Drive a synthetic bench instead of the serial port")
	debugRoutes  = flag.Bool("debug", false, "Mount the debug SQL console")
)

func main() {
	flag.Parse()

	monitoring.Logf("motorcal %s (%s)", version.Version, version.GitSHA)

	if *listen == "" {
		log.Fatal("listen address is required")
	}
	if !units.IsValid(*displayUnits) {
		log.Fatalf("invalid units %q, must be one of: %s", *displayUnits, units.GetValidUnitsString())
	}

	st, err := store.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open run database: %v", err)
	}
	defer st.Close()
	if err := st.MigrateUp(); err != nil {
		log.Fatalf("failed to migrate run database: %v", err)
	}

	sess := newSession(timeutil.RealClock{}, st)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *synthetic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runSyntheticBench(ctx, sess)
			monitoring.Logf("synthetic bench terminated")
		}()
	} else {
		port, err := NewMotorPort(*serialDevice)
		if err != nil {
			log.Fatalf("failed to open serial device %s: %v", *serialDevice, err)
		}

		// IO on the serial port.
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := port.Monitor(ctx); err != nil && err != context.Canceled {
				monitoring.Logf("serial monitor failed: %v", err)
			}
			monitoring.Logf("serial monitor terminated")
		}()

		// Tick loop: every telemetry sample through the session, every
		// command back out.
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case sample := <-port.Samples():
					port.SendCommand(sess.Update(sample))
				case <-ctx.Done():
					monitoring.Logf("tick loop terminated")
					return
				}
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		if *debugRoutes {
			st.AttachAdminRoutes(mux)
		}

		srv := NewServer(sess, st, *displayUnits)
		apiMux := srv.ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))
		mux.Handle("/report/", apiMux)

		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			monitoring.Logf("got request %q", r.URL.Path)
			mux.ServeHTTP(w, r)
		})

		server := &http.Server{
			Addr:    *listen,
			Handler: h,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		monitoring.Logf("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("HTTP server shutdown error: %v", err)
		}
		monitoring.Logf("HTTP server routine stopped")
	}()

	wg.Wait()
	monitoring.Logf("graceful shutdown complete")
}

// runSyntheticBench paces the simulated rig at its configured tick rate,
// feeding its samples through the session exactly like serial telemetry.
func runSyntheticBench(ctx context.Context, sess *session) {
	logf := monitoring.Prefixed("[bench]")
	benchCfg := sim.DefaultBenchConfig()
	// The rig absorbs speed above the ceiling, keeping open-loop current
	// steps inside a 4 rad/s velocity limit.
	benchCfg.VelocityCeiling = 3.4
	benchCfg.MaxCurrent = 5
	bench := sim.NewBench(sim.DefaultParameters(), benchCfg)
	tick := time.Duration(bench.Config.DT * float64(time.Second))
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	logf("running at %.0f Hz", 1/bench.Config.DT)

	var cmd calib.Command
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cmd = sess.Update(bench.Step(cmd))
		}
	}
}
