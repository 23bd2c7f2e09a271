package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/goodhanky/emago/internal/persistence/store"
	"github.com/goodhanky/emago/internal/transport/httpapi"
)

func writeMetrics(w io.Writer, c store.Counts, st httpapi.Stats, subscribers int) {
	fmt.Fprintf(w, "# HELP emago_players Registered players.\n")
	fmt.Fprintf(w, "# TYPE emago_players gauge\n")
	fmt.Fprintf(w, "emago_players %d\n", c.Players)

	fmt.Fprintf(w, "# HELP emago_planets Planets in the store.\n")
	fmt.Fprintf(w, "# TYPE emago_planets gauge\n")
	fmt.Fprintf(w, "emago_planets %d\n", c.Planets)

	fmt.Fprintf(w, "# HELP emago_ships_in_orbit Delivered ships across all planets.\n")
	fmt.Fprintf(w, "# TYPE emago_ships_in_orbit gauge\n")
	fmt.Fprintf(w, "emago_ships_in_orbit %d\n", c.ShipsInOrbit)

	fmt.Fprintf(w, "# HELP emago_queue_active In-progress orders by kind.\n")
	fmt.Fprintf(w, "# TYPE emago_queue_active gauge\n")
	for _, kind := range []string{"building", "research", "ship"} {
		fmt.Fprintf(w, "emago_queue_active{kind=%q} %d\n", kind, c.ActiveQueues[kind])
	}

	fmt.Fprintf(w, "# HELP emago_http_requests_total API requests served.\n")
	fmt.Fprintf(w, "# TYPE emago_http_requests_total counter\n")
	fmt.Fprintf(w, "emago_http_requests_total %d\n", st.Requests)

	fmt.Fprintf(w, "# HELP emago_orders_accepted_total Orders started.\n")
	fmt.Fprintf(w, "# TYPE emago_orders_accepted_total counter\n")
	fmt.Fprintf(w, "emago_orders_accepted_total %d\n", st.Accepted)

	fmt.Fprintf(w, "# HELP emago_orders_rejected_total Orders rejected by reason.\n")
	fmt.Fprintf(w, "# TYPE emago_orders_rejected_total counter\n")
	codes := make([]string, 0, len(st.Rejected))
	for code := range st.Rejected {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "emago_orders_rejected_total{code=%q} %d\n", code, st.Rejected[code])
	}

	fmt.Fprintf(w, "# HELP emago_sweeps_total Completion sweeps run.\n")
	fmt.Fprintf(w, "# TYPE emago_sweeps_total counter\n")
	fmt.Fprintf(w, "emago_sweeps_total %d\n", st.Sweeps)

	fmt.Fprintf(w, "# HELP emago_sweep_completions_total Completions applied by sweeps.\n")
	fmt.Fprintf(w, "# TYPE emago_sweep_completions_total counter\n")
	fmt.Fprintf(w, "emago_sweep_completions_total %d\n", st.Completions)

	fmt.Fprintf(w, "# HELP emago_event_subscribers Open event streams.\n")
	fmt.Fprintf(w, "# TYPE emago_event_subscribers gauge\n")
	fmt.Fprintf(w, "emago_event_subscribers %d\n", subscribers)

	fmt.Fprintf(w, "# HELP emago_schema_version Store schema version.\n")
	fmt.Fprintf(w, "# TYPE emago_schema_version gauge\n")
	fmt.Fprintf(w, "emago_schema_version %s\n", c.SchemaVersion)
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
