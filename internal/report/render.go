package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	deferStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
)

// Render writes the console summary of a report.
func Render(w io.Writer, r Report) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Deployment %s on %s", r.RunID, networkLabel(r))))
	b.WriteString("\n")
	if r.Outcome == OutcomeDone {
		b.WriteString(okStyle.Render("DONE"))
	} else {
		b.WriteString(failStyle.Render("ABORTED"))
		fmt.Fprintf(&b, " in %s, last completed stage: %s", r.FailedStage, orNone(r.LastCompleted))
	}
	b.WriteString("\n")
	if r.Error != "" {
		b.WriteString(failStyle.Render("error: ") + r.Error + "\n")
	}
	if r.Deployer != "" {
		b.WriteString(mutedStyle.Render("deployer: "+r.Deployer) + "\n")
	}

	section(&b, "Components", len(r.Components))
	for _, c := range r.Components {
		fmt.Fprintf(&b, "  %-28s %-10s proxy %s  impl %s\n", c.Name, c.Role, c.Proxy, c.Implementation)
	}

	section(&b, "Staged implementations", len(r.Staged))
	for _, s := range r.Staged {
		state := deferStyle.Render("staged")
		if s.Upgraded {
			state = okStyle.Render("upgraded")
		}
		fmt.Fprintf(&b, "  %-28s %s  proxy %s  impl %s\n", s.Name, state, s.Proxy, s.Implementation)
	}

	section(&b, "Allocation", len(r.Allocation))
	for _, a := range r.Allocation {
		fmt.Fprintf(&b, "  %-28s %8s  %s\n", a.Strategy, a.Percent, a.Address)
	}
	if len(r.Allocation) > 0 && r.IdleWeight > 0 {
		fmt.Fprintf(&b, "  %-28s %8s\n", mutedStyle.Render("idle"), percent(r.IdleWeight))
	}

	section(&b, "Deferred to authority", len(r.Deferred))
	for _, d := range r.Deferred {
		fmt.Fprintf(&b, "  %s %s [%s]\n", deferStyle.Render("⏸"), d.Step, d.Authority)
		fmt.Fprintf(&b, "    to:       %s\n", d.Target)
		fmt.Fprintf(&b, "    method:   %s\n", d.Method)
		fmt.Fprintf(&b, "    calldata: %s\n", d.Calldata)
	}

	section(&b, "Checks", len(r.Checks))
	for _, c := range r.Checks {
		if c.Passed {
			fmt.Fprintf(&b, "  %s %s\n", okStyle.Render("✓"), c.Name)
			continue
		}
		fmt.Fprintf(&b, "  %s %s: %s\n", failStyle.Render("✗"), c.Name, c.Detail)
	}

	section(&b, "Verification", len(r.Verification))
	for _, v := range r.Verification {
		fmt.Fprintf(&b, "  %-28s %s %s\n", v.Name, statusLabel(v.Status), mutedStyle.Render(v.Detail))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func section(b *strings.Builder, title string, n int) {
	if n == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(fmt.Sprintf("%s (%d)", title, n)))
	b.WriteString("\n")
}

func statusLabel(status string) string {
	switch status {
	case "verified":
		return okStyle.Render(status)
	case "failed":
		return failStyle.Render(status)
	default:
		return mutedStyle.Render(status)
	}
}

func networkLabel(r Report) string {
	if r.Network == "" {
		return "an unresolved network"
	}
	return fmt.Sprintf("%s (chain %d)", r.Network, r.ChainID)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
