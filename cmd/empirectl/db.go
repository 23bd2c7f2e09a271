package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	persistlog "github.com/goodhanky/emago/internal/persistence/log"
	"github.com/goodhanky/emago/internal/persistence/store"
	"github.com/goodhanky/emago/internal/sim/catalogs"
	"github.com/goodhanky/emago/internal/sim/queue"
)

func openDB() (*store.SQLiteStore, error) {
	path := dbPath
	if path == "" {
		path = filepath.Join(dataDir, "emago.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store %s: %w", path, err)
	}
	return store.OpenSQLite(path)
}

func exportCmd() *cobra.Command {
	var out, configDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot straight from the store file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("missing --out")
			}
			cats, err := catalogs.Load(configDir)
			if err != nil {
				return err
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			h, err := db.WriteSnapshot(context.Background(), out, cats.Digest())
			if err != nil {
				return err
			}
			renderHeader(os.Stdout, out, h)
			if fi, err := os.Stat(out); err == nil {
				fmt.Printf("  size %s\n", humanize.Bytes(uint64(fi.Size())))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "snapshot output path")
	cmd.Flags().StringVar(&configDir, "configs", "./configs", "config directory the server runs with")
	return cmd
}

func importCmd() *cobra.Command {
	var in string
	var yes bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the store contents with a snapshot (server must be stopped)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in == "" {
				return fmt.Errorf("missing --in")
			}
			if !yes {
				return fmt.Errorf("import replaces every row; pass --yes to confirm")
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			h, err := db.LoadSnapshot(context.Background(), in)
			if err != nil {
				return err
			}
			renderHeader(os.Stdout, in, h)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "snapshot path")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm replacing the store contents")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the store file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := context.Background()
			c, err := db.Counts(ctx)
			if err != nil {
				return err
			}
			digests, err := db.CatalogDigests(ctx)
			if err != nil {
				return err
			}
			renderStats(os.Stdout, c, digests)
			return nil
		},
	}
}

func renderStats(w io.Writer, c store.Counts, digests map[string]string) {
	t := tablewriter.NewTable(w, tablewriter.WithHeader([]string{"Metric", "Value"}))
	t.Append([]string{"schema version", c.SchemaVersion})
	t.Append([]string{"players", humanize.Comma(c.Players)})
	t.Append([]string{"planets", humanize.Comma(c.Planets)})
	t.Append([]string{"ships in orbit", humanize.Comma(c.ShipsInOrbit)})
	for _, kind := range []string{"building", "research", "ship"} {
		t.Append([]string{"active " + kind, humanize.Comma(c.ActiveQueues[kind])})
	}
	for _, name := range sortedKeys(digests) {
		t.Append([]string{"catalog " + name, short(digests[name])})
	}
	t.Render()
}

func eventsCmd() *cobra.Command {
	var player, planet string
	var limit int
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the order trail from <data>/orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			evs, err := readTrail(filepath.Join(dataDir, "orders"), func(ev queue.Event) bool {
				return (player == "" || ev.PlayerID == player) && (planet == "" || ev.PlanetID == planet)
			})
			if err != nil {
				return err
			}
			if limit > 0 && len(evs) > limit {
				evs = evs[len(evs)-limit:]
			}
			renderEvents(os.Stdout, evs)
			return nil
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "only this player")
	cmd.Flags().StringVar(&planet, "planet", "", "only this planet")
	cmd.Flags().IntVar(&limit, "limit", 50, "show at most the last N events (0 = all)")
	return cmd
}

func readTrail(dir string, keep func(queue.Event) bool) ([]queue.Event, error) {
	files, err := persistlog.Files(dir, "orders")
	if err != nil {
		return nil, err
	}
	var out []queue.Event
	for _, f := range files {
		err := persistlog.ReadJSONL(f, func(line []byte) error {
			var ev queue.Event
			if err := json.Unmarshal(line, &ev); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(f), err)
			}
			if keep(ev) {
				out = append(out, ev)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func renderEvents(w io.Writer, evs []queue.Event) {
	if len(evs) == 0 {
		fmt.Fprintln(w, "no events")
		return
	}
	t := tablewriter.NewTable(w, tablewriter.WithHeader([]string{"At", "Type", "Planet", "Order"}))
	for _, ev := range evs {
		order := ""
		if ev.Entry != nil {
			order = strings.TrimSpace(fmt.Sprintf("%s %s", ev.Entry.Kind, ev.Entry.Target))
		}
		switch {
		case ev.Units > 0:
			order += fmt.Sprintf(" +%d", ev.Units)
		case ev.Refund != nil:
			order += " refund " + formatAmounts(*ev.Refund)
		case ev.Amounts != nil:
			order = formatAmounts(*ev.Amounts)
		}
		t.Append([]string{ev.At.Format("2006-01-02 15:04:05"), string(ev.Type), ev.PlanetID, order})
	}
	t.Render()
}
