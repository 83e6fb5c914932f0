package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mohaanymo/veldscan"
)

var (
	parseLight  bool
	parseSelect string
	scanWorkers int
	scanLight   bool
)

var parseCmd = &cobra.Command{
	Use:   "parse <url>",
	Short: "Parse one manifest and print it as JSON",
	Long: `Fetch and parse an HLS or DASH manifest.

Selectors (--select):
  best                  Best video + its audio
  all                   Every rendition
  1080p, 720p, hd, 4k   Video by resolution + its audio
  v:0+a:1               By index
  s:en,fr               Subtitles by language

Examples:
  veldscan parse https://example.com/master.m3u8
  veldscan parse --light https://example.com/video.m3u8
  veldscan parse -s 720p+en https://example.com/manifest.mpd
`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

var scanCmd = &cobra.Command{
	Use:   "scan <url>...",
	Short: "Parse many manifests concurrently and print one JSON line each",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScan,
}

func init() {
	parseCmd.Flags().BoolVar(&parseLight, "light", false, "Only classify master/variant")
	parseCmd.Flags().StringVarP(&parseSelect, "select", "s", "", "Print the renditions picked by a selector instead")
	scanCmd.Flags().IntVarP(&scanWorkers, "workers", "n", 0, "Concurrent scans (default from config)")
	scanCmd.Flags().BoolVar(&scanLight, "light", false, "Only classify master/variant")
	rootCmd.AddCommand(parseCmd, scanCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	s, err := newScanner()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	mode := veldscan.ModeFull
	if parseLight {
		mode = veldscan.ModeLight
	}
	m := s.ParseManifest(ctx, args[0], nil, mode)

	if parseSelect != "" && m.OK() {
		sel, err := veldscan.Select(m, parseSelect)
		if err != nil {
			return fmt.Errorf("select %q: %w", parseSelect, err)
		}
		return printJSON(cmd.OutOrStdout(), sel)
	}

	if err := printJSON(cmd.OutOrStdout(), m); err != nil {
		return err
	}
	if !m.OK() {
		return fmt.Errorf("%s: %s", m.Status, m.Error)
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	s, err := newScanner()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	workers := cfg.Workers
	if scanWorkers > 0 {
		workers = scanWorkers
	}
	mode := veldscan.ModeFull
	if scanLight {
		mode = veldscan.ModeLight
	}

	q := veldscan.NewQueue(s,
		veldscan.WithMaxConcurrent(workers),
		veldscan.WithCapacity(len(args)),
		veldscan.WithOnStateChange(func(t *veldscan.Task) {
			logger.Debug().Str("task", t.ID).Str("url", t.URL).Str("state", t.State().String()).Msg("task state")
		}),
	)
	q.Start()
	defer q.Stop()

	for i, u := range args {
		if _, err := q.AddTask(strconv.Itoa(i), u, mode, nil); err != nil {
			return fmt.Errorf("queue %s: %w", u, err)
		}
	}
	if err := q.WaitAll(ctx); err != nil {
		return err
	}

	// One compact line per URL, in argument order.
	out := cmd.OutOrStdout()
	for _, t := range q.Tasks() {
		m := t.Manifest()
		if m == nil {
			fmt.Fprintf(out, "{\"url\":%q,\"state\":%q}\n", t.URL, t.State().String())
			continue
		}
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	}

	stats := q.Stats()
	logger.Info().
		Int("total", stats.Total).
		Int("completed", stats.Completed).
		Int("failed", stats.Failed).
		Int("canceled", stats.Canceled).
		Msg("scan finished")
	if stats.Failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d manifests failed\n", stats.Failed, stats.Total)
	}
	return nil
}
