package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/fumin/localham"
	"github.com/fumin/localham/store"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ccff"))
	headerStyle = lipgloss.NewStyle().
			Bold(true)
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888899"))
	valueStyle = lipgloss.NewStyle().
			Bold(true)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444466")).
			Padding(0, 1)
)

func field(label string, value any) string {
	return labelStyle.Render(fmt.Sprintf("%-12s", label)) + valueStyle.Render(fmt.Sprint(value))
}

func boundary(periodic bool) string {
	if periodic {
		return "periodic"
	}
	return "open"
}

// renderRun renders a run, and the statistics of its ground state when known.
func renderRun(r store.Run, stats *localham.Statistics) string {
	lines := []string{
		titleStyle.Render(r.Model),
		field("lattice", r.Lattice),
		field("seed", r.Seed),
		field("precision", r.Precision),
		field("matvecs", r.MatVecs),
		field("restarts", r.Restarts),
		field("duration", r.Duration),
	}
	if r.ID != 0 {
		lines = append(lines, field("id", r.ID))
	}
	for k, v := range r.Eigenvalues {
		lines = append(lines, field(fmt.Sprintf("E%d", k), formatEnergy(v)))
	}
	if r.HasExact && len(r.Eigenvalues) > 0 {
		lines = append(lines,
			field("exact", formatEnergy(r.Exact)),
			field("error", fmt.Sprintf("%.3e", math.Abs(r.Eigenvalues[0]-r.Exact))),
		)
	}
	if stats != nil {
		binder := "undefined"
		if !math.IsNaN(stats.BinderCumulant) {
			binder = fmt.Sprintf("%.6f", stats.BinderCumulant)
		}
		lines = append(lines,
			field("magnetization", fmt.Sprintf("%.6f", stats.Magnetization)),
			field("binder", binder),
		)
	}

	var b strings.Builder
	b.WriteString(panelStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")
	if len(r.History) > 1 {
		b.WriteString(asciigraph.Plot(r.History,
			asciigraph.Height(10),
			asciigraph.Width(60),
			asciigraph.Caption("lowest Ritz value per restart"),
		))
		b.WriteString("\n")
	}
	return b.String()
}

// renderSweep renders the energy per site of each series as a table and a plot.
func renderSweep(all []series) string {
	var b strings.Builder
	for _, s := range all {
		b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", s.model, boundary(s.periodic))))
		b.WriteString("\n")
		if len(s.runs) == 0 {
			b.WriteString(labelStyle.Render("no runs"))
			b.WriteString("\n")
			continue
		}
		writeRuns(&b, s.runs)

		perSite := make([]float64, 0, len(s.runs))
		for _, r := range s.runs {
			perSite = append(perSite, r.Eigenvalues[0]/float64(r.Lattice.NumSites))
		}
		if len(perSite) > 1 {
			b.WriteString(asciigraph.Plot(perSite,
				asciigraph.Height(8),
				asciigraph.Width(60),
				asciigraph.Caption("ground state energy per site"),
			))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeRuns(out io.Writer, runs []store.Run) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, headerStyle.Render("ID")+"\t"+headerStyle.Render("MODEL")+"\t"+headerStyle.Render("LATTICE")+"\t"+
		headerStyle.Render("SEED")+"\t"+headerStyle.Render("E0")+"\t"+headerStyle.Render("ERROR")+"\t"+
		headerStyle.Render("MATVECS")+"\t"+headerStyle.Render("DURATION"))
	for _, r := range runs {
		e0, errStr := "-", "-"
		if len(r.Eigenvalues) > 0 {
			e0 = formatEnergy(r.Eigenvalues[0])
			if r.HasExact {
				errStr = fmt.Sprintf("%.1e", math.Abs(r.Eigenvalues[0]-r.Exact))
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%d\t%s\n", r.ID, r.Model, r.Lattice, r.Seed, e0, errStr, r.MatVecs, r.Duration)
	}
	return w.Flush()
}

func formatEnergy(e float64) string {
	return fmt.Sprintf("%.12f", e)
}
