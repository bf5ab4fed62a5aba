// Package tui provides an interactive BubbleTea browser for a spattplus
// index: a query box, a "lo,hi" attribute-window box, and a live-updating
// result list. Adapted from the teacher's debounced textinput-driven search
// screen, generalized from a single free-text query to spattplus's
// (vector, range) query shape.
//
// Layout:
//
//	┌─────────────────────────────────────┐
//	│  spattplus  windowed ANN browser    │  ← header
//	│  ❯ <query text>                     │  ← query input
//	│  ↕ <lo,hi>                          │  ← attribute window input
//	│  ─────────────────────────────────  │  ← divider
//	│  0.12  #4821  path:line             │  ← results
//	│        preview text...              │
//	│  ─────────────────────────────────  │  ← divider
//	│  [3 results]  tab switch  ^q quit   │  ← status bar
//	└─────────────────────────────────────┘
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/screenager/spattplus/internal/ingest"
	"github.com/screenager/spattplus/internal/spattplus"
)

var (
	colorAccent = lipgloss.Color("#7C6AF7")
	colorDim    = lipgloss.Color("#555555")
	colorMuted  = lipgloss.Color("#888888")
	colorText   = lipgloss.Color("#DDDDDD")
	colorSub    = lipgloss.Color("#444444")
	colorScore  = lipgloss.Color("#5ECEF5")
	colorErr    = lipgloss.Color("#FF6B6B")

	sTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	sAccent  = lipgloss.NewStyle().Foreground(colorAccent)
	sDim     = lipgloss.NewStyle().Foreground(colorDim)
	sMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	sScore   = lipgloss.NewStyle().Foreground(colorScore).Bold(true)
	sErr     = lipgloss.NewStyle().Foreground(colorErr)
	sDivider = lipgloss.NewStyle().Foreground(colorSub)
	sHint    = lipgloss.NewStyle().Foreground(colorDim).Background(lipgloss.Color("#111111"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type spinTickMsg struct{}

func spinTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg { return spinTickMsg{} })
}

// QueryEmbedder turns free text into a query vector, e.g. *embed.Embedder.
type QueryEmbedder interface {
	EmbedQuery(text string) ([]float32, error)
}

type resultMsg struct {
	results []spattplus.Result
	status  spattplus.RuntimeStatus
}
type errMsg struct{ err error }
type debounceMsg struct {
	query, filter string
	id            int
}

type focusField int

const (
	focusQuery focusField = iota
	focusFilter
)

// Model is the BubbleTea application model.
type Model struct {
	searcher  *spattplus.Searcher
	embedder  QueryEmbedder
	docs      map[uint32]ingest.Doc
	nMax      uint32
	k         int

	queryInput  textinput.Model
	filterInput textinput.Model
	focus       focusField

	results    []spattplus.Result
	status     spattplus.RuntimeStatus
	err        error
	searching  bool
	spinFrame  int
	debounceID int

	width, height int
}

// New creates a Model browsing searcher, embedding queries via embedder.
// docs maps result labels back to their provenance, nil if unavailable.
func New(searcher *spattplus.Searcher, embedder QueryEmbedder, docs []ingest.Doc, nMax uint32) Model {
	qi := textinput.New()
	qi.Placeholder = "describe what you're looking for…"
	qi.Focus()
	qi.CharLimit = 256
	qi.Width = 60
	qi.PromptStyle = sAccent
	qi.Prompt = "❯ "

	fi := textinput.New()
	fi.Placeholder = fmt.Sprintf("lo,hi (default 0,%d)", nMax)
	fi.CharLimit = 32
	fi.Width = 24
	fi.PromptStyle = sAccent
	fi.Prompt = "↕ "

	byLabel := make(map[uint32]ingest.Doc, len(docs))
	for _, d := range docs {
		byLabel[d.Label] = d
	}

	return Model{
		searcher:    searcher,
		embedder:    embedder,
		docs:        byLabel,
		nMax:        nMax,
		k:           10,
		queryInput:  qi,
		filterInput: fi,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, spinTick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.queryInput.Width = m.width - 8
		return m, nil

	case spinTickMsg:
		m.spinFrame = (m.spinFrame + 1) % len(spinnerFrames)
		return m, spinTick()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+q":
			return m, tea.Quit
		case "tab":
			if m.focus == focusQuery {
				m.focus = focusFilter
				m.queryInput.Blur()
				m.filterInput.Focus()
			} else {
				m.focus = focusQuery
				m.filterInput.Blur()
				m.queryInput.Focus()
			}
			return m, nil
		}

	case debounceMsg:
		if msg.id == m.debounceID {
			if strings.TrimSpace(msg.query) == "" {
				m.searching, m.results = false, nil
				return m, nil
			}
			m.searching = true
			return m, runSearch(m.searcher, m.embedder, msg.query, msg.filter, m.k, m.nMax)
		}
		return m, nil

	case resultMsg:
		m.searching, m.err = false, nil
		m.results, m.status = msg.results, msg.status
		return m, nil

	case errMsg:
		m.searching, m.err = false, msg.err
		return m, nil
	}

	var cmds []tea.Cmd
	prevQ, prevF := m.queryInput.Value(), m.filterInput.Value()
	var c1, c2 tea.Cmd
	m.queryInput, c1 = m.queryInput.Update(msg)
	m.filterInput, c2 = m.filterInput.Update(msg)
	cmds = append(cmds, c1, c2)
	if m.queryInput.Value() != prevQ || m.filterInput.Value() != prevF {
		m.debounceID++
		cmds = append(cmds, debounceCmd(m.queryInput.Value(), m.filterInput.Value(), m.debounceID, 280*time.Millisecond))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	var b strings.Builder
	divider := sDivider.Render(strings.Repeat("─", clamp(m.width-2, 10, 200)))

	fmt.Fprintln(&b, "  "+sTitle.Render("spattplus")+"  "+sMuted.Render("windowed ANN browser"))
	fmt.Fprintln(&b, "  "+m.queryInput.View())
	fmt.Fprintln(&b, "  "+m.filterInput.View())
	fmt.Fprintln(&b, "  "+divider)

	switch {
	case m.err != nil:
		fmt.Fprintln(&b, sErr.Render("  error: "+m.err.Error()))
	case m.searching:
		fmt.Fprintln(&b, "  "+sAccent.Render(spinnerFrames[m.spinFrame])+"  "+sMuted.Render("searching…"))
	case len(m.results) == 0 && m.queryInput.Value() == "":
		fmt.Fprintln(&b, "")
		fmt.Fprintln(&b, sMuted.Render("  type a query; tab to set an attribute window (defaults to the full range)"))
	case len(m.results) == 0:
		fmt.Fprintln(&b, sMuted.Render("  no results in range"))
	default:
		for _, r := range m.results {
			if r.IsSentinel(m.nMax) {
				continue
			}
			loc := "  "
			if d, ok := m.docs[r.Label]; ok {
				loc = fmt.Sprintf("%s:%d", d.Path, d.LineNum)
			}
			fmt.Fprintf(&b, "  %s  #%-6d %s\n", sScore.Render(fmt.Sprintf("%.3f", r.Dist)), r.Label, loc)
			if d, ok := m.docs[r.Label]; ok && d.Preview != "" {
				fmt.Fprintf(&b, "        %s\n", sMuted.Render(strings.Join(strings.Fields(d.Preview), " ")))
			}
		}
	}

	fmt.Fprintln(&b, "  "+divider)
	status := sDim.Render(fmt.Sprintf("  %d results · %d dist comps", nonSentinelCount(m.results, m.nMax), m.status.DistComputations))
	hint := sHint.Render("tab switch  ^q quit  ")
	fmt.Fprint(&b, padBetween(status, hint, m.width))
	return b.String()
}

func runSearch(s *spattplus.Searcher, qe QueryEmbedder, query, filter string, k int, nMax uint32) tea.Cmd {
	return func() tea.Msg {
		vec, err := qe.EmbedQuery(query)
		if err != nil {
			return errMsg{err}
		}
		lo, hi := uint32(0), nMax
		if filter != "" {
			if l, h, ok := parseRange(filter); ok {
				lo, hi = l, h
			}
		}
		results, status := s.Search(vec, lo, hi, spattplus.SearchParameters{Efs: 64, K: k, IsDynamic: true})
		return resultMsg{results: results, status: status}
	}
}

func parseRange(s string) (lo, hi uint32, ok bool) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	l, err1 := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
	h, err2 := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 32)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return uint32(l), uint32(h), true
}

func nonSentinelCount(results []spattplus.Result, nMax uint32) int {
	n := 0
	for _, r := range results {
		if !r.IsSentinel(nMax) {
			n++
		}
	}
	return n
}

func debounceCmd(query, filter string, id int, delay time.Duration) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(delay)
		return debounceMsg{query: query, filter: filter, id: id}
	}
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

func padBetween(left, right string, width int) string {
	gap := width - visibleLen(left) - visibleLen(right) - 2
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func visibleLen(s string) int {
	n := 0
	inEsc := false
	for _, c := range s {
		if c == '\x1b' {
			inEsc = true
		}
		if inEsc {
			if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
				inEsc = false
			}
			continue
		}
		n++
	}
	return n
}
