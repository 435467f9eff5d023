package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yourusername/yt-fetch-go/internal/domain"
)

var (
	serverURL   string
	noAutoStart bool
	rootCmd     = &cobra.Command{
		Use:   "yt-fetch",
		Short: "yt-fetch CLI - fetch YouTube videos through a yt-fetch server",
		Long:  `A command-line client for the yt-fetch server: fetch videos or audio, submit background fetches and inspect their status.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().BoolVar(&noAutoStart, "no-auto-start", false, "Don't auto-start server if not running")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(purgeCmd)
}

// ensureServer checks if server is running and starts it if needed (unless --no-auto-start)
func ensureServer() {
	if noAutoStart {
		return
	}
	if err := ensureServerRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Fetch a video and save it locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		quality, _ := cmd.Flags().GetString("quality")
		output, _ := cmd.Flags().GetString("output")

		form := url.Values{"url": {args[0]}}
		if quality != "" {
			form.Set("quality", quality)
		}

		resp, err := http.PostForm(serverURL+"/fetch", form)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return responseError(resp)
		}

		path, n, err := saveAttachment(resp, output)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %s (%s)\n", path, humanize.Bytes(uint64(n)))
		return nil
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit [url]",
	Short: "Start a background fetch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		quality, _ := cmd.Flags().GetString("quality")

		data, _ := json.Marshal(map[string]string{"url": args[0], "quality": quality})
		resp, err := http.Post(serverURL+"/api/v1/fetches", "application/json", bytes.NewBuffer(data))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			return responseError(resp)
		}

		var rec domain.StatusRecord
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return err
		}
		fmt.Printf("Fetch submitted\n")
		fmt.Printf("ID:      %s\n", rec.ID)
		fmt.Printf("Quality: %s\n", rec.Quality)
		fmt.Printf("State:   %s\n", rec.State)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [id]",
	Short: "Show the status of a fetch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		wait, _ := cmd.Flags().GetBool("wait")

		for {
			var rec domain.StatusRecord
			if err := getJSON("/status/"+args[0], &rec); err != nil {
				return err
			}
			if !wait || rec.IsTerminal() {
				printStatus(rec)
				return nil
			}
			fmt.Printf("%s %3.0f%%\n", rec.State, rec.Progress)
			time.Sleep(time.Second)
		}
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect [id]",
	Short: "Download the file of a completed background fetch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		output, _ := cmd.Flags().GetString("output")

		resp, err := http.Get(serverURL + "/api/v1/fetches/" + url.PathEscape(args[0]) + "/file")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return responseError(resp)
		}

		path, n, err := saveAttachment(resp, output)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %s (%s)\n", path, humanize.Bytes(uint64(n)))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List fetches tracked by the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		state, _ := cmd.Flags().GetString("state")

		path := "/api/v1/fetches"
		if state != "" {
			path += "?state=" + url.QueryEscape(state)
		}

		var body struct {
			Fetches []domain.StatusRecord `json:"fetches"`
		}
		if err := getJSON(path, &body); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVIDEO\tQUALITY\tSTATE\tTITLE\tCREATED")
		for _, rec := range body.Fetches {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				truncate(rec.ID, 8),
				rec.VideoID,
				rec.Quality,
				rec.State,
				truncate(rec.Title, 40),
				humanize.Time(rec.CreatedAt))
		}
		return w.Flush()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show finished fetches from the history store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")

		var body struct {
			Records []domain.FetchRecord `json:"records"`
		}
		if err := getJSON(fmt.Sprintf("/api/v1/history?limit=%d", limit), &body); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tVIDEO\tSTATE\tSIZE\tFILE\tCREATED")
		for _, rec := range body.Records {
			detail := rec.FileName
			if rec.State == domain.StateFailed {
				detail = string(rec.ErrorKind)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				truncate(rec.ID, 8),
				rec.VideoID,
				rec.State,
				humanize.Bytes(uint64(rec.Size)),
				truncate(detail, 40),
				humanize.Time(rec.CreatedAt))
		}
		return w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show fetch statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		var stats domain.FetchStats
		if err := getJSON("/api/v1/history/stats", &stats); err != nil {
			return err
		}

		fmt.Println("Fetch Statistics:")
		fmt.Printf("  Total:    %d\n", stats.Total)
		fmt.Printf("  Complete: %d\n", stats.Complete)
		fmt.Printf("  Failed:   %d\n", stats.Failed)
		fmt.Printf("  Served:   %s\n", humanize.Bytes(uint64(stats.TotalBytes)))
		for kind, n := range stats.ByKind {
			fmt.Printf("    %-20s %d\n", kind, n)
		}
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop expired fetches from the server registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()
		resp, err := http.Post(serverURL+"/api/v1/fetches/purge", "application/json", nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return responseError(resp)
		}

		var body struct {
			Purged int `json:"purged"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return err
		}
		fmt.Printf("Purged %d fetch(es)\n", body.Purged)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringP("quality", "q", "", "Quality tier (low, medium, high, best, audio-only)")
	fetchCmd.Flags().StringP("output", "o", ".", "Directory to save the file in")
	submitCmd.Flags().StringP("quality", "q", "", "Quality tier (low, medium, high, best, audio-only)")
	statusCmd.Flags().BoolP("wait", "w", false, "Poll until the fetch finishes")
	collectCmd.Flags().StringP("output", "o", ".", "Directory to save the file in")
	listCmd.Flags().StringP("state", "s", "", "Filter by state")
	historyCmd.Flags().IntP("limit", "n", 20, "Number of records to show")
}

func getJSON(path string, v interface{}) error {
	resp, err := http.Get(serverURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// responseError turns a non-success response into an error carrying the server's message
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var e struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("%s (%s, HTTP %d)", e.Error, e.Kind, resp.StatusCode)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}

func printStatus(rec domain.StatusRecord) {
	fmt.Printf("Fetch Details:\n")
	fmt.Printf("  ID:       %s\n", rec.ID)
	fmt.Printf("  URL:      %s\n", rec.URL)
	fmt.Printf("  Quality:  %s\n", rec.Quality)
	fmt.Printf("  State:    %s (%.0f%%)\n", rec.State, rec.Progress)
	fmt.Printf("  Created:  %s\n", rec.CreatedAt.Format(time.RFC3339))
	if rec.Title != "" {
		fmt.Printf("  Title:    %s\n", rec.Title)
	}
	if rec.FileName != "" {
		fmt.Printf("  File:     %s (%s)\n", rec.FileName, humanize.Bytes(uint64(rec.Size)))
	}
	if rec.Error != "" {
		fmt.Printf("  Error:    %s [%s]\n", rec.Error, rec.ErrorKind)
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
