package main

import (
	"fmt"
	"io"

	"github.com/joacominatel/lossim/internal/app"
	"github.com/joacominatel/lossim/internal/tui/theme"
)

// stepPrinter writes one line per finished step for non-interactive runs.
type stepPrinter struct {
	w io.Writer
}

func newStepPrinter(w io.Writer) *stepPrinter {
	return &stepPrinter{w: w}
}

func (p *stepPrinter) header(target string, plan app.Plan) {
	fmt.Fprintf(p.w, "%s %s\n", theme.StyleTitle.Render("lossim"), theme.StyleMuted.Render(target))
	fmt.Fprintf(p.w, "%s\n", theme.StyleMuted.Render(fmt.Sprintf("%s.%s → %s · sample %d",
		plan.Table, plan.KeyField, plan.BackupTable, plan.SampleSize)))
}

func (p *stepPrinter) event(ev app.Event) {
	name := fmt.Sprintf("%-10s", ev.Step.String())
	switch ev.Status {
	case app.StatusDone:
		fmt.Fprintf(p.w, "  %s %s  %s\n", theme.StyleSuccess.Render("✓"), name, theme.StyleMuted.Render(ev.Detail))
	case app.StatusFailed:
		fmt.Fprintf(p.w, "  %s %s  %s\n", theme.StyleError.Render("✗"), name, theme.StyleError.Render(ev.Err.Error()))
	case app.StatusSkipped:
		fmt.Fprintf(p.w, "  %s %s\n", theme.StyleMuted.Render("-"), theme.StyleMuted.Render(name))
	}
}

func (p *stepPrinter) summary(r *app.Report) {
	if r == nil {
		return
	}
	elapsed := r.FinishedAt.Sub(r.StartedAt).Round(1000)
	if r.Succeeded() {
		fmt.Fprintf(p.w, "%s run %s: %d rows restored from %s in %s\n",
			theme.StyleSuccess.Render("ok"), r.RunID, r.Restored, r.BackupTable, elapsed)
		return
	}
	fmt.Fprintf(p.w, "%s run %s failed at %s after %s\n",
		theme.StyleError.Render("failed"), r.RunID, r.FailedStep, elapsed)
}
