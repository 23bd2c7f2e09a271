package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/goodhanky/emago/internal/persistence/snapshot"
	"github.com/goodhanky/emago/internal/sim/model"
	"github.com/goodhanky/emago/internal/sim/queue"
)

type sweepBody struct {
	Processed   int                `json:"processed"`
	Completions []queue.Completion `json:"completions"`
}

func sweepCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Trigger a completion sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("EMAGO_SWEEP_SECRET")
			}
			var h http.Header
			if secret != "" {
				h = http.Header{"Authorization": []string{"Bearer " + secret}}
			}
			var res sweepBody
			if err := call("POST", "/v1/sweep", nil, &res, h); err != nil {
				return err
			}
			renderSweep(os.Stdout, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "sweep bearer secret (default $EMAGO_SWEEP_SECRET)")
	return cmd
}

func renderSweep(w io.Writer, res sweepBody) {
	if res.Processed == 0 {
		fmt.Fprintln(w, "nothing due")
		return
	}
	okColor.Fprintf(w, "%d completions\n", res.Processed)
	t := tablewriter.NewTable(w, tablewriter.WithHeader([]string{"Kind", "Planet", "Target", "Result"}))
	for _, c := range res.Completions {
		result := fmt.Sprintf("level %d", c.Level)
		if c.Kind == model.KindShip {
			result = fmt.Sprintf("+%d (%d delivered)", c.Units, c.Delivered)
			if c.BatchComplete {
				result += " done"
			}
		}
		t.Append([]string{string(c.Kind), c.PlanetID, c.Target, result})
	}
	t.Render()
}

func grantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <planet-id>",
		Short: "Set a planet's stock to the admin grant (loopback only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res struct {
				Stored model.Resources `json:"stored"`
			}
			if err := call("POST", "/admin/v1/planets/"+args[0]+"/grant", nil, &res, nil); err != nil {
				return err
			}
			okColor.Fprintln(os.Stdout, "granted")
			fmt.Println(formatAmounts(res.Stored))
			return nil
		},
	}
}

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Ask the server to write a snapshot into its data directory (loopback only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res struct {
				Path   string          `json:"path"`
				Header snapshot.Header `json:"header"`
			}
			if err := call("POST", "/admin/v1/snapshot", nil, &res, nil); err != nil {
				return err
			}
			renderHeader(os.Stdout, res.Path, res.Header)
			return nil
		},
	}
}

func renderHeader(w io.Writer, path string, h snapshot.Header) {
	okColor.Fprintln(w, path)
	fmt.Fprintf(w, "  created  %s (%s)\n", h.CreatedAt.Format("2006-01-02 15:04:05Z"), since(h.CreatedAt))
	fmt.Fprintf(w, "  players %d  planets %d  queues %d\n", h.Players, h.Planets, h.Queues)
	fmt.Fprintf(w, "  catalogs %s  checksum %s\n", short(h.CatalogDigest), short(h.Checksum))
}
