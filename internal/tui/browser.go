// Package tui provides an interactive terminal browser for the renditions
// of a parsed manifest.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mohaanymo/veldscan/internal/models"
	"github.com/mohaanymo/veldscan/internal/selector"
)

// Kind labels a browser row.
type Kind string

const (
	KindVideo    Kind = "VIDEO"
	KindAudio    Kind = "AUDIO"
	KindSubtitle Kind = "SUB"
)

// Row is one selectable rendition.
type Row struct {
	Kind     Kind
	ID       string
	URL      string
	Quality  string
	Codecs   string
	Language string
	Name     string
	// Bandwidth is the effective bandwidth for video.
	Bandwidth int64
	Embedded  bool
	Probed    bool
}

// BrowserResult is returned when browsing is complete.
type BrowserResult struct {
	Selected []Row
	Canceled bool
}

// Browser is a bubbletea model listing every rendition of a manifest.
type Browser struct {
	manifest     *models.Manifest
	rows         []Row
	selected     map[int]bool
	cursor       int
	scrollOffset int
	visibleRows  int
	width        int
	height       int
	done         bool
	canceled     bool
}

// NewBrowser builds a browser for m with the best selection pre-selected.
func NewBrowser(m *models.Manifest) *Browser {
	b := &Browser{
		manifest:    m,
		rows:        Rows(m),
		selected:    make(map[int]bool),
		width:       80,
		height:      24,
		visibleRows: 15,
	}

	if best, err := selector.Best(m); err == nil {
		for i, r := range b.rows {
			switch {
			case r.Kind == KindVideo && best.Video != nil && r.URL == best.Video.URL && r.ID == best.Video.ID:
				b.selected[i] = true
			case r.Kind == KindAudio && len(best.Audio) > 0 && r.URL == best.Audio[0].URL && r.ID == best.Audio[0].ID:
				b.selected[i] = true
			}
		}
	}
	return b
}

// Rows flattens m's renditions in display order: video, audio, subtitles.
func Rows(m *models.Manifest) []Row {
	rows := make([]Row, 0, len(m.VideoTracks)+len(m.AudioTracks)+len(m.SubtitleTracks))
	for i := range m.VideoTracks {
		v := &m.VideoTracks[i]
		rows = append(rows, Row{
			Kind:      KindVideo,
			ID:        v.ID,
			URL:       v.URL,
			Quality:   v.StandardizedResolution,
			Codecs:    v.Codecs,
			Bandwidth: v.EffectiveBandwidth(),
			Probed:    v.DirectlyFetched,
		})
	}
	for _, a := range m.AudioTracks {
		rows = append(rows, Row{
			Kind:      KindAudio,
			ID:        a.ID,
			URL:       a.URL,
			Codecs:    a.Codecs,
			Language:  a.Language,
			Name:      a.Name,
			Bandwidth: a.Bandwidth,
			Embedded:  a.IsEmbedded,
			Probed:    a.DirectlyFetched,
		})
	}
	for _, s := range m.SubtitleTracks {
		rows = append(rows, Row{
			Kind:     KindSubtitle,
			ID:       s.ID,
			URL:      s.URL,
			Codecs:   s.Container,
			Language: s.Language,
			Name:     s.Name,
			Probed:   s.DirectlyFetched,
		})
	}
	return rows
}

func (b *Browser) Init() tea.Cmd {
	return nil
}

func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			b.canceled = true
			b.done = true
			return b, tea.Quit

		case "enter":
			b.done = true
			return b, tea.Quit

		case "up", "k":
			if b.cursor > 0 {
				b.cursor--
				b.adjustScroll()
			}

		case "down", "j":
			if b.cursor < len(b.rows)-1 {
				b.cursor++
				b.adjustScroll()
			}

		case " ", "x":
			if b.cursor < len(b.rows) {
				b.selected[b.cursor] = !b.selected[b.cursor]
			}

		case "v":
			b.selectKind(KindVideo)
		case "a":
			b.selectKind(KindAudio)
		case "s":
			b.selectKind(KindSubtitle)

		case "n":
			for k := range b.selected {
				delete(b.selected, k)
			}
		}

	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
		if rows := msg.Height - 14; rows > 3 {
			b.visibleRows = rows
		}
	}

	return b, nil
}

func (b *Browser) selectKind(k Kind) {
	for i, r := range b.rows {
		if r.Kind == k {
			b.selected[i] = true
		}
	}
}

func (b *Browser) adjustScroll() {
	if b.cursor < b.scrollOffset {
		b.scrollOffset = b.cursor
	}
	if b.cursor >= b.scrollOffset+b.visibleRows {
		b.scrollOffset = b.cursor - b.visibleRows + 1
	}
}

func (b *Browser) View() string {
	w := clamp(b.width-4, 60, 110)

	var sb strings.Builder

	title := titleStyle.Render("veldscan")
	sub := dimStyle.Render(" - " + b.manifest.URL)
	sb.WriteString(headerStyle.Width(w).Render(title + sub))
	sb.WriteString("\n\n")
	sb.WriteString(b.summary())
	sb.WriteString("\n\n")

	if len(b.rows) == 0 {
		sb.WriteString(warningStyle.Render("No renditions"))
		sb.WriteString("\n\n")
		sb.WriteString(helpStyle.Render(keyHelpStyle.Render("q") + " quit"))
		return contentStyle.Width(w).Render(sb.String())
	}

	if b.scrollOffset > 0 {
		sb.WriteString(dimStyle.Render("  ↑ more above"))
		sb.WriteString("\n")
	}

	lastKind := Kind("")
	visible := 0
	for i := b.scrollOffset; i < len(b.rows) && visible < b.visibleRows; i++ {
		r := b.rows[i]
		if r.Kind != lastKind {
			if lastKind != "" {
				sb.WriteString("\n")
			}
			sb.WriteString(subtitleStyle.Render(sectionTitle(r.Kind)))
			sb.WriteString("\n")
			lastKind = r.Kind
		}
		sb.WriteString(renderRow(r, i == b.cursor, b.selected[i]))
		sb.WriteString("\n")
		visible++
	}

	if b.scrollOffset+b.visibleRows < len(b.rows) {
		sb.WriteString(dimStyle.Render("  ↓ more below"))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if b.cursor < len(b.rows) {
		sb.WriteString(labelStyle.Render("URL "))
		sb.WriteString(valueStyle.Render(b.rows[b.cursor].URL))
		sb.WriteString("\n\n")
	}

	sb.WriteString(helpStyle.Render(
		keyHelpStyle.Render("↑/↓") + " navigate  " +
			keyHelpStyle.Render("space") + " toggle  " +
			keyHelpStyle.Render("enter") + " confirm  " +
			keyHelpStyle.Render("q") + " cancel",
	))
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(
		keyHelpStyle.Render("v") + " all video  " +
			keyHelpStyle.Render("a") + " all audio  " +
			keyHelpStyle.Render("s") + " all subs  " +
			keyHelpStyle.Render("n") + " none",
	))

	return contentStyle.Width(w).Render(sb.String())
}

func (b *Browser) summary() string {
	m := b.manifest
	parts := []string{
		statLabelStyle.Render("format ") + statValueStyle.Render(m.Format.String()),
		statLabelStyle.Render("status ") + statusStyle(m.Status).Render(string(m.Status)),
	}

	switch {
	case m.IsLive:
		parts = append(parts, statLabelStyle.Render("duration ")+statValueStyle.Render("live"))
	case m.Duration != nil:
		parts = append(parts, statLabelStyle.Render("duration ")+statValueStyle.Render(formatDuration(*m.Duration)))
	default:
		parts = append(parts, statLabelStyle.Render("duration ")+dimStyle.Render("unknown"))
	}

	if m.IsEncrypted {
		method := m.EncryptionMethod
		if method == "" {
			method = "yes"
		}
		parts = append(parts, statLabelStyle.Render("encrypted ")+errorStyle.Render(method))
	}
	if len(m.DRMSystems) > 0 {
		parts = append(parts, statLabelStyle.Render("drm ")+valueStyle.Render(strings.Join(m.DRMSystems, ",")))
	}
	return strings.Join(parts, dimStyle.Render("  •  "))
}

func sectionTitle(k Kind) string {
	switch k {
	case KindAudio:
		return "Audio"
	case KindSubtitle:
		return "Subtitles"
	default:
		return "Video"
	}
}

func renderRow(r Row, cursor, selected bool) string {
	var b strings.Builder

	if cursor {
		b.WriteString(selectedStyle.Render("▸ "))
	} else {
		b.WriteString("  ")
	}

	if selected {
		b.WriteString(successStyle.Render("[✓] "))
	} else {
		b.WriteString(dimStyle.Render("[ ] "))
	}

	switch r.Kind {
	case KindVideo:
		b.WriteString(videoBadge.Render("VIDEO"))
	case KindAudio:
		b.WriteString(audioBadge.Render("AUDIO"))
	case KindSubtitle:
		b.WriteString(subtitleBadge.Render("SUB"))
	}
	b.WriteString(" ")

	b.WriteString(valueStyle.Render(fmt.Sprintf("%-6s", r.Quality)))
	b.WriteString(" ")
	b.WriteString(normalStyle.Render(fmt.Sprintf("%-24s", truncate(r.Codecs, 24))))

	if r.Language != "" {
		b.WriteString(dimStyle.Render(" • "))
		b.WriteString(normalStyle.Render(r.Language))
	}
	if r.Name != "" && r.Name != r.Language {
		b.WriteString(dimStyle.Render(" • "))
		b.WriteString(normalStyle.Render(r.Name))
	}
	if r.Bandwidth > 0 {
		b.WriteString(dimStyle.Render(" • "))
		b.WriteString(dimStyle.Render(formatBandwidth(r.Bandwidth)))
	}
	if r.Embedded {
		b.WriteString(dimStyle.Render(" • muxed"))
	}
	if r.Probed {
		b.WriteString(dimStyle.Render(" • probed"))
	}

	return b.String()
}

// Result returns the selected rows. With nothing toggled the row under the
// cursor is returned.
func (b *Browser) Result() BrowserResult {
	if b.canceled {
		return BrowserResult{Canceled: true}
	}

	var selected []Row
	for i, r := range b.rows {
		if b.selected[i] {
			selected = append(selected, r)
		}
	}
	if len(selected) == 0 && b.cursor < len(b.rows) {
		selected = append(selected, b.rows[b.cursor])
	}
	return BrowserResult{Selected: selected}
}

func formatBandwidth(bw int64) string {
	if bw >= 1000000 {
		return fmt.Sprintf("%.1f Mbps", float64(bw)/1000000)
	}
	if bw >= 1000 {
		return fmt.Sprintf("%.0f kbps", float64(bw)/1000)
	}
	return fmt.Sprintf("%d bps", bw)
}

func formatDuration(secs int) string {
	h, m, s := secs/3600, secs%3600/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
