// Package viz renders reactor runs in the terminal.
//
//   - [PlotSeries]: line chart of one or more species over time (asciigraph)
//   - [MatrixTable], [FormulaTable]: stoichiometry and rate formulas of a model
//   - [Browser]: interactive viewer of a stored run (Bubble Tea)
//
// # Browser key bindings
//
//	↑/k ↓/j - Select species
//	a       - Toggle all species on one chart
//	t       - Cycle color themes
//	?       - Show help
//	q       - Quit
package viz
