package viz

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/reactsim/internal/kinetics"
	"github.com/san-kum/reactsim/internal/stoich"
)

// MatrixText lays the stoichiometry matrix out as plain columns, one row per
// species. Zero coefficients print as ".".
func MatrixText(m *stoich.Matrix) string {
	header := append([]string{"species"}, m.Reactions()...)
	rows := [][]string{header}
	for i, sp := range m.Species() {
		row := []string{sp}
		for j := 0; j < m.Cols(); j++ {
			row = append(row, coefficient(m.At(i, j)))
		}
		rows = append(rows, row)
	}
	return columns(rows)
}

// MatrixTable is MatrixText with a styled header.
func MatrixTable(m *stoich.Matrix) string {
	return styleHeader(MatrixText(m))
}

// FormulaText lists the substituted rate formula of every reaction, then the
// derived quantities in evaluation order.
func FormulaText(sys *kinetics.System) string {
	rows := [][]string{{"reaction", "rate"}}
	for _, r := range sys.Reactions() {
		f, _ := sys.Formula(r)
		rows = append(rows, []string{r, f})
	}
	out := columns(rows)

	if names := sys.DerivedNames(); len(names) > 0 {
		rows = [][]string{{"derived", "formula"}}
		for _, n := range names {
			f, _ := sys.DerivedFormula(n)
			rows = append(rows, []string{n, f})
		}
		out += "\n" + columns(rows)
	}
	return out
}

func FormulaTable(sys *kinetics.System) string {
	blocks := strings.Split(FormulaText(sys), "\n\n")
	for i, b := range blocks {
		blocks[i] = styleHeader(b)
	}
	return strings.Join(blocks, "\n\n")
}

func coefficient(v float64) string {
	if v == 0 {
		return "."
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func columns(rows [][]string) string {
	widths := make([]int, 0)
	for _, row := range rows {
		for j, cell := range row {
			if j >= len(widths) {
				widths = append(widths, 0)
			}
			widths[j] = max(widths[j], len(cell))
		}
	}

	var b strings.Builder
	for _, row := range rows {
		var line strings.Builder
		for j, cell := range row {
			if j > 0 {
				line.WriteString("  ")
			}
			fmt.Fprintf(&line, "%-*s", widths[j], cell)
		}
		b.WriteString(strings.TrimRight(line.String(), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func styleHeader(text string) string {
	head, rest, _ := strings.Cut(text, "\n")
	return HeaderStyle.Render(head) + "\n" + rest
}
