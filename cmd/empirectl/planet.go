package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/goodhanky/emago/internal/protocol"
	"github.com/goodhanky/emago/internal/sim/formulas"
	"github.com/goodhanky/emago/internal/sim/model"
	"github.com/goodhanky/emago/internal/sim/queue"
	"github.com/goodhanky/emago/internal/sim/validation"
)

func planetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "planet <planet-id>",
		Short: "Show a planet's resources, levels and active orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v queue.PlanetView
			if err := call("GET", "/v1/planets/"+args[0], nil, &v, nil); err != nil {
				return err
			}
			renderPlanet(os.Stdout, v)
			return nil
		},
	}
}

func renderPlanet(w io.Writer, v queue.PlanetView) {
	p := v.Planet
	headColor.Fprintf(w, "%s [%d:%d]  %d°C  fields %d/%d\n", p.Name, p.CoordX, p.CoordY, p.Temperature, p.FieldsUsed, p.FieldsMax)
	fmt.Fprintf(w, "energy %d/%d (factor %.2f)\n\n", v.Economy.EnergyProduction, v.Economy.EnergyConsumption, v.Economy.EnergyFactor)

	res := tablewriter.NewTable(w, tablewriter.WithHeader([]string{"Resource", "Stored", "Capacity", "Per hour", "Full in"}))
	for _, r := range []struct {
		name                   string
		cur, capacity, perHour float64
		full                   *int64
	}{
		{"metal", v.Current.Metal, v.Capacity.Metal, v.Economy.PerHour.Metal, v.FullIn.Metal},
		{"crystal", v.Current.Crystal, v.Capacity.Crystal, v.Economy.PerHour.Crystal, v.FullIn.Crystal},
		{"deuterium", v.Current.Deuterium, v.Capacity.Deuterium, v.Economy.PerHour.Deuterium, v.FullIn.Deuterium},
	} {
		full := "-"
		if r.full != nil {
			full = formulas.FormatDuration(*r.full)
		}
		res.Append([]string{r.name, humanize.Comma(int64(r.cur)), humanize.Comma(int64(r.capacity)), humanize.Comma(int64(r.perHour)), full})
	}
	res.Render()

	levels := tablewriter.NewTable(w, tablewriter.WithHeader([]string{"Building", "Level"}))
	for _, bt := range model.AllBuildingTypes() {
		if lvl := p.Buildings.Get(bt); lvl > 0 {
			levels.Append([]string{string(bt), strconv.Itoa(lvl)})
		}
	}
	for _, name := range sortedKeys(v.Research) {
		if lvl := v.Research[model.TechType(name)]; lvl > 0 {
			levels.Append([]string{name + " (tech)", strconv.Itoa(lvl)})
		}
	}
	levels.Render()

	if len(p.Ships) > 0 {
		ships := tablewriter.NewTable(w, tablewriter.WithHeader([]string{"Ship", "Count"}))
		for _, name := range sortedKeys(p.Ships) {
			ships.Append([]string{name, humanize.Comma(int64(p.Ships[model.ShipType(name)]))})
		}
		ships.Render()
	}

	if len(v.Active) == 0 {
		fmt.Fprintln(w, "no active orders")
		return
	}
	for _, a := range v.Active {
		e := a.Entry
		what := fmt.Sprintf("%s -> %d", e.Target, e.TargetLevel)
		if e.Kind == model.KindShip {
			what = fmt.Sprintf("%s %d/%d", e.Target, e.CompletedCount, e.Quantity)
		}
		warnColor.Fprintf(w, "%-8s %s", e.Kind, what)
		fmt.Fprintf(w, "  done %s (%s)\n", humanize.RelTime(e.EndTime, v.At, "ago", "from now"), a.Remaining)
	}
}

func sortedKeys[K ~string, V any](m map[K]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// orderResult mirrors the HTTP decision body.
type orderResult struct {
	Accepted bool                `json:"accepted"`
	Code     string              `json:"code"`
	Details  *validation.Details `json:"details"`
	Quote    *validation.Quote   `json:"quote"`
	Entry    *model.QueueEntry   `json:"entry"`
}

func quoteCmd() *cobra.Command {
	var qty int
	cmd := &cobra.Command{
		Use:   "quote <planet-id> <building|research|ship> <target>",
		Short: "Price an order without starting it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := protocol.QuoteRequest{Kind: args[1], Target: args[2], Quantity: qty}
			var res orderResult
			if err := call("POST", "/v1/planets/"+args[0]+"/quote", req, &res, nil); err != nil {
				return err
			}
			renderDecision(os.Stdout, res)
			return nil
		},
	}
	cmd.Flags().IntVar(&qty, "qty", 0, "ship quantity")
	return cmd
}

func renderDecision(w io.Writer, res orderResult) {
	if !res.Accepted {
		warnColor.Fprintf(w, "rejected: %s\n", res.Code)
		if res.Details == nil {
			return
		}
		if res.Details.Required != nil && res.Details.Available != nil {
			req, avail := *res.Details.Required, *res.Details.Available
			fmt.Fprintf(w, "  required  %s\n", formatAmounts(req))
			fmt.Fprintf(w, "  available %s\n", formatAmounts(avail))
		}
		for _, m := range res.Details.MissingPrerequisites {
			fmt.Fprintf(w, "  needs %s %s level %d (have %d)\n", m.Type, m.Name, m.RequiredLevel, m.CurrentLevel)
		}
		return
	}
	q := res.Quote
	okColor.Fprintln(w, "accepted")
	fmt.Fprintf(w, "  cost     %s\n", formatAmounts(q.Cost))
	fmt.Fprintf(w, "  duration %s\n", formulas.FormatDuration(q.DurationSeconds))
	if q.Kind == model.KindShip {
		fmt.Fprintf(w, "  per unit %s x %d\n", formulas.FormatDuration(q.UnitSeconds), q.Quantity)
	} else {
		fmt.Fprintf(w, "  level    %d\n", q.TargetLevel)
	}
}

func formatAmounts(r model.Resources) string {
	return fmt.Sprintf("metal %s  crystal %s  deuterium %s",
		humanize.Comma(int64(r.Metal)), humanize.Comma(int64(r.Crystal)), humanize.Comma(int64(r.Deuterium)))
}

func catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List catalog entries and digests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var c catalogBody
			if err := call("GET", "/v1/catalog", nil, &c, nil); err != nil {
				return err
			}
			renderCatalog(os.Stdout, c)
			return nil
		},
	}
}

type catalogBody struct {
	Digests   protocol.CatalogDigests    `json:"digests"`
	GameSpeed float64                    `json:"game_speed"`
	Buildings map[string]json.RawMessage `json:"buildings"`
	Research  map[string]json.RawMessage `json:"research"`
	Ships     map[string]json.RawMessage `json:"ships"`
}

func renderCatalog(w io.Writer, c catalogBody) {
	headColor.Fprintf(w, "game speed %.2f\n", c.GameSpeed)
	t := tablewriter.NewTable(w, tablewriter.WithHeader([]string{"Catalog", "Entries", "Digest"}))
	t.Append([]string{"buildings", strconv.Itoa(len(c.Buildings)), short(c.Digests.Buildings)})
	t.Append([]string{"research", strconv.Itoa(len(c.Research)), short(c.Digests.Research)})
	t.Append([]string{"ships", strconv.Itoa(len(c.Ships)), short(c.Digests.Ships)})
	t.Render()
	for _, group := range []struct {
		name string
		m    map[string]json.RawMessage
	}{{"buildings", c.Buildings}, {"research", c.Research}, {"ships", c.Ships}} {
		fmt.Fprintf(w, "%s: ", group.name)
		for i, k := range sortedKeys(group.m) {
			if i > 0 {
				fmt.Fprint(w, ", ")
			}
			fmt.Fprint(w, k)
		}
		fmt.Fprintln(w)
	}
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func since(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}
