package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"evocore/internal/driver"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	stagStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// monitorModel is a Bubble Tea model that renders the most recent Event
// emitted by a running Driver, fed through an EventSink-backed channel.
type monitorModel struct {
	events   <-chan driver.Event
	done     bool
	maxGen   int
	last     driver.Event
	received int
}

type eventMsg driver.Event
type doneMsg struct{}

func newMonitorModel(events <-chan driver.Event, maxGen int) monitorModel {
	return monitorModel{events: events, maxGen: maxGen}
}

func waitForEvent(events <-chan driver.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m monitorModel) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.last = driver.Event(msg)
		m.received++
		return m, waitForEvent(m.events)
	case doneMsg:
		m.done = true
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m monitorModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("evocorectl monitor"))
	b.WriteString("\n\n")
	if m.received == 0 {
		b.WriteString(labelStyle.Render("waiting for the first generation..."))
		b.WriteString("\n")
		return b.String()
	}

	progress := ""
	if m.maxGen > 0 {
		progress = fmt.Sprintf(" / %s", humanize.Comma(int64(m.maxGen)))
	}
	fmt.Fprintf(&b, "%s %s%s\n", labelStyle.Render("generation"), humanize.Comma(int64(m.last.Generation)), progress)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("phase      "), m.last.Phase)
	fmt.Fprintf(&b, "%s %.6f\n", labelStyle.Render("best       "), m.last.BestFitness)
	fmt.Fprintf(&b, "%s %.6f\n", labelStyle.Render("average    "), m.last.AvgFitness)
	fmt.Fprintf(&b, "%s %.4f\n", labelStyle.Render("diversity  "), m.last.Diversity)
	fmt.Fprintf(&b, "%s %.4f\n", labelStyle.Render("mutation   "), m.last.MutationRate)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("population "), humanize.Comma(int64(m.last.PopulationSize)))
	if m.last.Stagnant {
		b.WriteString(stagStyle.Render(fmt.Sprintf("stagnant (action: %s)", m.last.DiversityAction)))
		b.WriteString("\n")
	}
	if m.done {
		b.WriteString("\nrun complete\n")
	}
	b.WriteString(labelStyle.Render("\npress q to quit\n"))
	return b.String()
}
