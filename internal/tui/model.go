// Package tui is the full-screen interview front end.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"interviewsim/internal/interview"
)

// Interviewer is the TUI-facing subset of *interview.Interviewer.
type Interviewer interface {
	Start(ctx context.Context, s *interview.Session) (string, error)
	Respond(ctx context.Context, s *interview.Session, answer string) (string, error)
	Feedback(ctx context.Context, s *interview.Session) (string, error)
}

// Transcriber turns a recorded answer into text.
type Transcriber interface {
	TranscribeAnswer(ctx context.Context, path string) (string, error)
}

type entry struct {
	who  string
	text string
}

type (
	questionMsg struct {
		text string
		err  error
	}
	answerMsg struct {
		answer string
		reply  string
		err    error
	}
	feedbackMsg struct {
		text string
		err  error
	}
	transcribedMsg struct {
		text string
		err  error
	}
)

// Model is the Bubble Tea model of a running interview.
type Model struct {
	ctx         context.Context
	interviewer Interviewer
	transcriber Transcriber
	session     *interview.Session
	title       string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	entries []entry
	status  string
	busy    bool
	ready   bool
}

// New creates the model. title is shown in the header.
func New(ctx context.Context, iv Interviewer, tr Transcriber, s *interview.Session, title string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type your answer and press Enter (/feedback, /audio <file>, /quit)"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		ctx:         ctx,
		interviewer: iv,
		transcriber: tr,
		session:     s,
		title:       title,
		input:       ti,
		viewport:    viewport.New(0, 0),
		spinner:     sp,
		status:      "Preparing the first question...",
		busy:        true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.startCmd())
}

func (m Model) startCmd() tea.Cmd {
	return func() tea.Msg {
		q, err := m.interviewer.Start(m.ctx, m.session)
		return questionMsg{text: q, err: err}
	}
}

func (m Model) respondCmd(answer string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.interviewer.Respond(m.ctx, m.session, answer)
		return answerMsg{answer: answer, reply: reply, err: err}
	}
}

func (m Model) feedbackCmd() tea.Cmd {
	return func() tea.Msg {
		fb, err := m.interviewer.Feedback(m.ctx, m.session)
		return feedbackMsg{text: fb, err: err}
	}
}

func (m Model) transcribeCmd(path string) tea.Cmd {
	return func() tea.Msg {
		text, err := m.transcriber.TranscribeAnswer(m.ctx, path)
		return transcribedMsg{text: text, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case questionMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Could not start: " + msg.err.Error()
			return m, nil
		}
		m.entries = append(m.entries, entry{who: "Interviewer", text: msg.text})
		m.status = "Your turn."
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error() + " (answer not recorded)"
			m.input.SetValue(msg.answer)
			return m, nil
		}
		m.entries = append(m.entries,
			entry{who: "You", text: msg.answer},
			entry{who: "Interviewer", text: msg.reply},
		)
		m.status = fmt.Sprintf("Your turn. %d turns left.", m.session.Remaining())
		m.refresh()
		return m, nil

	case feedbackMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.entries = append(m.entries, entry{who: "Feedback", text: msg.text})
		m.status = "Feedback added."
		m.refresh()
		return m, nil

	case transcribedMsg:
		if msg.err != nil {
			m.busy = false
			m.status = "Transcription failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "Transcribed, waiting for the interviewer..."
		return m, m.respondCmd(msg.text)

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" || m.busy {
		return m, nil
	}

	switch {
	case line == "/quit" || line == "/q":
		return m, tea.Quit
	case line == "/feedback":
		m.input.Reset()
		m.busy = true
		m.status = "Assessing the interview..."
		return m, m.feedbackCmd()
	case strings.HasPrefix(line, "/audio"):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/audio"))
		if m.transcriber == nil || path == "" {
			m.status = "Speech input needs speech.enabled and a file path."
			return m, nil
		}
		m.input.Reset()
		m.busy = true
		m.status = "Transcribing " + path + "..."
		return m, m.transcribeCmd(path)
	case strings.HasPrefix(line, "/"):
		m.status = "Unknown command " + line
		return m, nil
	}

	m.input.Reset()
	m.busy = true
	m.status = "Waiting for the interviewer..."
	return m, m.respondCmd(line)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return "No questions yet."
	}
	width := max(20, m.viewport.Width-2)
	var sb strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(speakerStyle(e.who).Render(e.who))
		sb.WriteByte('\n')
		sb.WriteString(lipgloss.NewStyle().Width(width).Render(e.text))
	}
	return sb.String()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render(m.title)
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	body := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	return header + "\n" + body + "\n" + input + "\n" + status
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	spinnerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	interviewerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	candidateStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	feedbackStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)

func speakerStyle(who string) lipgloss.Style {
	switch who {
	case "Interviewer":
		return interviewerStyle
	case "Feedback":
		return feedbackStyle
	default:
		return candidateStyle
	}
}

// Run starts the program and blocks until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
