// Command empirectl inspects and operates an emago server, either over its
// HTTP API or directly against the store file.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goodhanky/emago/internal/protocol"
)

var (
	baseURL string
	dataDir string
	dbPath  string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "empirectl",
		Short:         "Inspect and operate an emago economy server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "server base url")
	root.PersistentFlags().StringVar(&dataDir, "data", "./data", "runtime data directory")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite path (default: <data>/emago.sqlite)")

	root.AddCommand(
		planetCmd(),
		quoteCmd(),
		catalogCmd(),
		sweepCmd(),
		grantCmd(),
		snapshotCmd(),
		exportCmd(),
		importCmd(),
		statsCmd(),
		eventsCmd(),
	)
	return root
}

// apiError is a non-2xx answer carrying the server's error code.
type apiError struct {
	Status int
	Body   protocol.ErrorResponse
}

func (e *apiError) Error() string {
	if e.Body.Code == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("%s (http %d): %s", e.Body.Code, e.Status, e.Body.Message)
}

// call sends an optional JSON body and decodes a JSON answer into out.
// Rejected orders answer 4xx with a decision body; those decode into out
// too when out is non-nil and the body is not an ErrorResponse.
func call(method, path string, in, out any, header http.Header) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e protocol.ErrorResponse
		if json.Unmarshal(raw, &e) == nil && e.Code != "" {
			return &apiError{Status: resp.StatusCode, Body: e}
		}
		if out == nil {
			return &apiError{Status: resp.StatusCode}
		}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	headColor = color.New(color.FgCyan, color.Bold)
)
