package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"scoreboard/aggregate"
)

const (
	systemPaneMaxLines = 200
	breakdownRows      = 8
)

// dashboard is the console scoreboard for the operator at the logging PC. The
// top row shows the score and fetch stats, the middle row the band, operator
// and station tables, and the bottom pane receives the log.
type dashboard struct {
	app          *tview.Application
	scoreView    *tview.TextView
	statsView    *tview.TextView
	bandView     *tview.TextView
	operatorView *tview.TextView
	stationView  *tview.TextView
	systemView   *tview.TextView
	closed       atomic.Bool
	ready        chan struct{}
}

func newDashboard(title string) *dashboard {
	pane := func(name string) *tview.TextView {
		tv := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
		tv.SetBorder(true).SetTitle(" " + name + " ").SetTitleAlign(tview.AlignLeft)
		return tv
	}

	score := pane(title)
	score.SetTextColor(tcell.ColorYellow)
	stats := pane("Logger")
	bands := pane("Bands")
	ops := pane("Operators")
	stations := pane("Stations")
	system := pane("System")
	system.SetMaxLines(systemPaneMaxLines)

	top := tview.NewFlex().
		AddItem(score, 0, 1, false).
		AddItem(stats, 0, 1, false)
	middle := tview.NewFlex().
		AddItem(bands, 0, 1, false).
		AddItem(ops, 0, 1, false).
		AddItem(stations, 0, 2, false)
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 9, 0, false).
		AddItem(middle, breakdownRows+2, 0, false).
		AddItem(system, 0, 1, false)

	app := tview.NewApplication().SetRoot(layout, true).EnableMouse(false)
	ready := make(chan struct{})
	var once sync.Once
	app.SetBeforeDrawFunc(func(tcell.Screen) bool {
		once.Do(func() { close(ready) })
		return false
	})

	d := &dashboard{
		app:          app,
		scoreView:    score,
		statsView:    stats,
		bandView:     bands,
		operatorView: ops,
		stationView:  stations,
		systemView:   system,
		ready:        ready,
	}
	go func() {
		if err := app.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "dashboard error: %v\n", err)
		}
	}()
	return d
}

func (d *dashboard) WaitReady() {
	if d == nil {
		return
	}
	<-d.ready
}

func (d *dashboard) Stop() {
	if d == nil || !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.app.Stop()
}

// Update redraws every pane except System from one snapshot.
func (d *dashboard) Update(snap aggregate.Snapshot, statsLines []string) {
	if d == nil || d.closed.Load() {
		return
	}
	score := strings.Join(escapeLines(formatScoreLines(snap)), "\n")
	stats := strings.Join(escapeLines(statsLines), "\n")
	bands := strings.Join(escapeLines(formatBreakdownLines(snap.ContactsByBand, breakdownRows)), "\n")
	ops := strings.Join(escapeLines(formatBreakdownLines(snap.ContactsByOperator, breakdownRows)), "\n")
	stations := strings.Join(escapeLines(formatStationLines(snap.Stations)), "\n")
	d.app.QueueUpdateDraw(func() {
		d.scoreView.SetText(score)
		d.statsView.SetText(stats)
		d.bandView.SetText(bands)
		d.operatorView.SetText(ops)
		d.stationView.SetText(stations)
	})
}

// SystemWriter returns a writer for the log fanout. Lines land in the System
// pane in order; the pane keeps the newest systemPaneMaxLines.
func (d *dashboard) SystemWriter() io.Writer {
	if d == nil {
		return nil
	}
	return &paneWriter{d: d}
}

type paneWriter struct {
	d *dashboard
}

func (w *paneWriter) Write(p []byte) (int, error) {
	if w.d.closed.Load() {
		return len(p), nil
	}
	text := tview.Escape(string(p))
	w.d.app.QueueUpdateDraw(func() {
		fmt.Fprint(w.d.systemView, text)
		w.d.systemView.ScrollToEnd()
	})
	return len(p), nil
}

func escapeLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = tview.Escape(l)
	}
	return out
}

// formatScoreLines is shared by the dashboard and the headless stats ticker.
func formatScoreLines(snap aggregate.Snapshot) []string {
	t := snap.Totals
	lines := []string{
		fmt.Sprintf("Score: %d (%d pts x%d class x%d power + %d bonus)",
			t.FinalScore, t.Points, t.ClassMultiplier, t.PowerMultiplier, t.BonusPoints),
		fmt.Sprintf("Contacts: %d  Sections: %d", t.Contacts, snap.Multipliers.Sections),
	}
	if b := snap.FieldDayBonus; b != nil {
		lines = append(lines, fmt.Sprintf("Class: %s  Bonuses claimed: %d", b.FDClass, len(b.BonusBreakdown)))
	}
	rs := snap.RateStats
	rate := fmt.Sprintf("Rate: %d/hr (20m) %d/hr (60m) over %d hour(s)", rs.Rate20Min, rs.Rate60Min, rs.TotalHours)
	if rs.BestHour != nil {
		rate += fmt.Sprintf("  Best hour %s: %d", rs.BestHour.Hour, rs.BestHour.QSOs)
	}
	lines = append(lines, rate)
	if modes := formatBreakdownInline(snap.ContactsByMode); modes != "" {
		lines = append(lines, "Modes: "+modes)
	}
	return lines
}

func formatBreakdownLines(b aggregate.Breakdown, limit int) []string {
	if len(b.Rows) == 0 {
		return []string{"(none yet)"}
	}
	width := 0
	for _, r := range b.Rows {
		width = max(width, len(r.Name))
	}
	var lines []string
	for i, r := range b.Rows {
		if limit > 0 && i == limit-1 && len(b.Rows) > limit {
			lines = append(lines, fmt.Sprintf("... %d more", len(b.Rows)-i))
			break
		}
		lines = append(lines, fmt.Sprintf("%-*s %5d", width, r.Name, r.Count))
	}
	return lines
}

func formatBreakdownInline(b aggregate.Breakdown) string {
	parts := make([]string, 0, len(b.Rows))
	for _, r := range b.Rows {
		parts = append(parts, fmt.Sprintf("%s %d", r.Name, r.Count))
	}
	return strings.Join(parts, " / ")
}

func formatStationLines(stations []aggregate.StationView) []string {
	if len(stations) == 0 {
		return []string{"(no stations yet)"}
	}
	lines := make([]string, 0, len(stations))
	for _, s := range stations {
		last := "-"
		if len(s.Recent) > 0 {
			last = s.Recent[0].Call
		}
		lines = append(lines, fmt.Sprintf("%-12s %-10s %-5s %-6s last %s", s.Name, s.Operator, s.Band, s.Mode, last))
	}
	return lines
}
