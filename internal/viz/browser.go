package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/reactsim/internal/analysis"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
	sidebarWidth  = 34
)

// Browser is a Bubble Tea model for inspecting one stored trajectory.
type Browser struct {
	title    string
	species  []string
	times    []float64
	states   [][]float64
	summary  []analysis.SpeciesSummary
	selected int
	all      bool
	theme    int
	showHelp bool
	width    int
	height   int
}

// NewBrowser prepares the viewer. Every row of states holds one value per
// species.
func NewBrowser(title string, species []string, times []float64, states [][]float64) (*Browser, error) {
	summary, err := analysis.Summarize(species, times, states)
	if err != nil {
		return nil, err
	}
	return &Browser{
		title:   title,
		species: species,
		times:   times,
		states:  states,
		summary: summary,
		width:   defaultWidth,
		height:  defaultHeight,
	}, nil
}

func (b *Browser) Init() tea.Cmd { return nil }

func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return b, tea.Quit
		case "up", "k":
			b.selected = (b.selected - 1 + len(b.species)) % len(b.species)
		case "down", "j":
			b.selected = (b.selected + 1) % len(b.species)
		case "a":
			b.all = !b.all
		case "t":
			b.theme = (b.theme + 1) % len(Themes)
		case "?":
			b.showHelp = !b.showHelp
		}
	}
	return b, nil
}

// Selected returns the highlighted species.
func (b *Browser) Selected() string { return b.species[b.selected] }

func (b *Browser) Theme() Theme { return Themes[b.theme] }

func (b *Browser) View() string {
	st := b.Theme().styles()

	plotWidth := max(b.width-sidebarWidth-12, 20)
	plotHeight := max(b.height-10, 5)

	var names []string
	var series [][]float64
	if b.all {
		names = b.species
		for i := range b.species {
			series = append(series, Column(b.states, i))
		}
	} else {
		names = []string{b.Selected()}
		series = [][]float64{Column(b.states, b.selected)}
	}
	chart := PlotSeries(b.times, names, series, PlotOptions{Width: plotWidth, Height: plotHeight, Color: true})

	var side strings.Builder
	side.WriteString(st.header.Render(strings.ToUpper(b.title)) + "\n")
	for i, sp := range b.species {
		spark := SparklineChart(Column(b.states, i), 12)
		line := fmt.Sprintf("%-8s %s", sp, spark)
		if i == b.selected {
			side.WriteString(st.active.Render("> "+line) + "\n")
		} else {
			side.WriteString("  " + st.value.Render(line) + "\n")
		}
	}

	s := b.summary[b.selected]
	side.WriteString("\n")
	side.WriteString(st.label.Render("initial") + st.value.Render(fmt.Sprintf("%.4g", s.Initial)) + "\n")
	side.WriteString(st.label.Render("final") + st.value.Render(fmt.Sprintf("%.4g", s.Final)) + "\n")
	side.WriteString(st.label.Render("min") + st.value.Render(fmt.Sprintf("%.4g", s.Min)) + "\n")
	side.WriteString(st.label.Render("max") + st.value.Render(fmt.Sprintf("%.4g @ t=%.3g", s.Max, s.MaxTime)) + "\n")
	if s.Min < 0 {
		side.WriteString(st.warn.Render("negative concentration") + "\n")
	}
	side.WriteString(st.muted.Render(fmt.Sprintf("\n%d samples  theme: %s\n↑↓ select  a all  t theme  ? help  q quit",
		len(b.times), b.Theme().Name)))

	main := lipgloss.JoinHorizontal(lipgloss.Top,
		st.panel.Width(sidebarWidth).Render(side.String()),
		lipgloss.NewStyle().Padding(0, 2).Render(chart))

	if b.showHelp {
		help := st.panel.Render(strings.Join([]string{
			"↑/k  ↓/j   select species",
			"a          all species on one chart",
			"t          cycle themes",
			"?          toggle this help",
			"q          quit",
		}, "\n"))
		return help + "\n\n" + main
	}
	return main
}

// RunBrowser opens the browser full screen and blocks until it is closed.
func RunBrowser(b *Browser) error {
	_, err := tea.NewProgram(b, tea.WithAltScreen()).Run()
	return err
}
