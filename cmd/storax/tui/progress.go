// Package tui renders a live copy-progress view for interactive terminal
// sessions, subscribing to the orchestrator's transferProgress event for
// one job and letting the user pause/resume/cancel it.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Controller is the subset of the copy engine's controls the progress view
// drives: pause/resume/cancel by job id. The CLI wires this to the
// orchestrator's CancelCopy/PauseCopy/ResumeCopy methods.
type Controller interface {
	Cancel(jobID string) bool
	Pause(jobID string) bool
	Resume(jobID string) bool
}

type progressMsg float64
type doneMsg struct{}

type model struct {
	jobID      string
	percent    float64
	paused     bool
	done       bool
	updates    <-chan float64
	controller Controller
}

func (m model) Init() tea.Cmd {
	return waitForUpdate(m.updates)
}

func waitForUpdate(updates <-chan float64) tea.Cmd {
	return func() tea.Msg {
		percent, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return progressMsg(percent)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "c", "ctrl+c":
			if m.controller != nil {
				m.controller.Cancel(m.jobID)
			}
			return m, tea.Quit
		case "p":
			if m.controller != nil && m.controller.Pause(m.jobID) {
				m.paused = true
			}
		case "r":
			if m.controller != nil && m.controller.Resume(m.jobID) {
				m.paused = false
			}
		}
	case progressMsg:
		m.percent = float64(msg)
		if m.percent >= 100 {
			m.done = true
			return m, tea.Quit
		}
		return m, waitForUpdate(m.updates)
	case doneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	width := 40
	filled := int(float64(width) * m.percent / 100)
	if filled > width {
		filled = width
	}
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}

	status := "copying"
	if m.paused {
		status = "paused"
	}
	if m.done {
		status = "done"
	}

	return fmt.Sprintf("job %s [%s] %s %5.1f%%  (p: pause  r: resume  c: cancel)\n", m.jobID, bar, status, m.percent)
}

// RunCopyProgress drives an interactive bubbletea view for one job until
// updates closes (the job reached 100%) or the user quits it. It has no
// pause/resume/cancel wiring.
func RunCopyProgress(jobID string, updates <-chan float64) {
	RunCopyProgressWithController(jobID, updates, nil)
}

// RunCopyProgressWithController is RunCopyProgress with pause/resume/
// cancel wired to controller. controller may be nil, in which case p and r
// do nothing and c only quits the view.
func RunCopyProgressWithController(jobID string, updates <-chan float64, controller Controller) {
	m := model{jobID: jobID, updates: updates, controller: controller}
	p := tea.NewProgram(m)
	p.Run()
}
