package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mohaanymo/veldscan/internal/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse <url>",
	Short: "Parse a manifest and pick renditions interactively",
	Long: `Parse a manifest and list its renditions in an interactive browser.
The URLs of the picked renditions are printed on exit.

Keys: up/down or j/k move, space toggles, v/a/s select all of a kind,
n clears the selection, enter confirms, q quits.`,
	Args: cobra.ExactArgs(1),
	RunE: runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	s, err := newScanner()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	m := s.Parse(ctx, args[0])
	if !m.OK() {
		return fmt.Errorf("%s: %s", m.Status, m.Error)
	}
	if !m.IsMaster {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is a variant playlist\n", m.URL)
		return nil
	}

	browser := tui.NewBrowser(m)
	p := tea.NewProgram(browser, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("browser error: %w", err)
	}

	result := browser.Result()
	if result.Canceled {
		fmt.Fprintln(cmd.ErrOrStderr(), "Canceled")
		return nil
	}
	for _, r := range result.Selected {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", r.Kind, r.Quality, r.URL)
	}
	return nil
}
