package store

import (
	"log"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts the debug surface on mux: a tailSQL console
// over the run database under /debug/tailsql/. Only wire this up behind
// the -debug flag; the console executes arbitrary read queries.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://motorcal.db", s.db, &tailsql.DBOptions{
		Label: "Calibration runs",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
}
