package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the rate limit state of a running landplan service",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8080", "status server address")
	rootCmd.AddCommand(statusCmd)
}

type bucketStatus struct {
	Available  int   `json:"available"`
	Capacity   int   `json:"capacity"`
	WaitTimeMs int64 `json:"wait_time_ms"`
}

func runStatus(cmd *cobra.Command, args []string) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(statusAddr + "/ratelimit")
	if err != nil {
		slog.Error("Failed to reach status server", "addr", statusAddr, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var buckets map[string]bucketStatus
	if err := json.NewDecoder(resp.Body).Decode(&buckets); err != nil {
		slog.Error("Failed to decode status", "error", err)
		os.Exit(1)
	}

	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "RESOURCE\tREMAINING\tNEXT TOKEN")
	for _, name := range names {
		b := buckets[name]
		next := "-"
		if b.Available == 0 {
			next = (time.Duration(b.WaitTimeMs) * time.Millisecond).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%d/%d requests remaining\t%s\n", name, b.Available, b.Capacity, next)
	}
	_ = w.Flush()
}
