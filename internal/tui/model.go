// Package tui is an interactive chat over one session's documents.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragreader/internal/domain"
	"ragreader/internal/service"
	"ragreader/internal/textutil"
)

// Pipeline is the TUI-facing subset of the service.
type Pipeline interface {
	Status(h service.BuildHandle) (service.BuildStatus, error)
	AnswerQuery(ctx context.Context, session, query string) (domain.QueryResult, error)
}

const pollInterval = 500 * time.Millisecond

type (
	pollMsg   struct{}
	buildMsg  service.BuildStatus
	answerMsg struct {
		result domain.QueryResult
		err    error
	}
)

type exchange struct {
	query  string
	answer string
	err    error
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	pipeline Pipeline
	session  string
	build    service.BuildHandle
	timeout  time.Duration

	input    textinput.Model
	viewport viewport.Model

	transcript []exchange
	docs       []domain.Chunk
	lastQuery  string
	cursor     int

	summary string
	status  string
	ready   bool
	built   bool
	pending bool
}

// New creates a chat model for session. build is the build to follow; the
// chat accepts queries once it finishes.
func New(p Pipeline, session string, build service.BuildHandle) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		pipeline: p,
		session:  session,
		build:    build,
		timeout:  2 * time.Minute,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Processing documents...",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.checkBuild())
}

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m Model) checkBuild() tea.Cmd {
	p, h := m.pipeline, m.build
	return func() tea.Msg {
		st, err := p.Status(h)
		if err != nil {
			st.State = service.StateFailed
			st.Error = err.Error()
		}
		return buildMsg(st)
	}
}

func (m Model) ask(q string) tea.Cmd {
	p, session, timeout := m.pipeline, m.session, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		res, err := p.AnswerQuery(ctx, session, q)
		return answerMsg{result: res, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil

	case pollMsg:
		return m, m.checkBuild()

	case buildMsg:
		st := service.BuildStatus(msg)
		if !st.State.Done() {
			m.status = fmt.Sprintf("Processing documents (%s)...", st.State)
			return m, poll()
		}
		m.built = true
		if st.State == service.StateFailed {
			m.status = "Document processing failed: " + st.Error
			return m, nil
		}
		m.summary = st.Summary
		m.status = fmt.Sprintf("Indexed %d chunks from %d documents. Ask away.", st.Chunks, st.Documents-st.Excluded)
		if st.Excluded > 0 {
			m.status += fmt.Sprintf(" (%d over the limit were skipped)", st.Excluded)
		}
		return m, nil

	case answerMsg:
		if !m.pending || len(m.transcript) == 0 {
			return m, nil
		}
		m.pending = false
		last := &m.transcript[len(m.transcript)-1]
		if msg.err != nil {
			last.err = msg.err
			m.status = "Error: " + msg.err.Error()
			m.docs = nil
		} else {
			last.answer = msg.result.Answer
			m.docs = msg.result.RelevantDocs
			m.status = fmt.Sprintf("Answered in %.2fs from %d sources. Up/Down to browse them.", msg.result.ResponseTime, len(m.docs))
		}
		m.cursor = 0
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			if !m.built {
				m.status = "Still processing documents, please wait."
				return m, nil
			}
			m.input.SetValue("")
			m.pending = true
			m.lastQuery = q
			m.transcript = append(m.transcript, exchange{query: q})
			m.status = "Thinking..."
			m.refresh()
			return m, m.ask(q)
		case "down":
			if len(m.docs) > 0 {
				m.cursor = (m.cursor + 1) % len(m.docs)
				m.refresh()
				return m, nil
			}
		case "up":
			if len(m.docs) > 0 {
				m.cursor = (m.cursor - 1 + len(m.docs)) % len(m.docs)
				m.refresh()
				return m, nil
			}
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Reader · " + m.session)
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(oneLine(m.summary, m.viewport.Width))
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for _, ex := range m.transcript {
		b.WriteString(youStyle.Render("You: "))
		b.WriteString(ex.query)
		b.WriteString("\n")
		switch {
		case ex.err != nil:
			b.WriteString(errStyle.Render("Error: " + ex.err.Error()))
		case ex.answer == "":
			b.WriteString(botStyle.Render("Bot: ") + "...")
		default:
			b.WriteString(botStyle.Render("Bot: "))
			b.WriteString(ex.answer)
		}
		b.WriteString("\n\n")
	}
	if len(m.docs) > 0 {
		d := m.docs[m.cursor]
		b.WriteString(sourceStyle.Render(fmt.Sprintf("Source %d/%d  %s", m.cursor+1, len(m.docs), sourceLabel(d))))
		b.WriteString("\n")
		b.WriteString(highlightBestSentence(d.Text, m.lastQuery))
	}
	return strings.TrimRight(b.String(), "\n")
}

func sourceLabel(c domain.Chunk) string {
	if c.Page > 0 {
		return fmt.Sprintf("%s (page %d)", c.DocumentName, c.Page)
	}
	return c.DocumentName
}

func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width > 3 && len([]rune(s)) > width {
		return string([]rune(s)[:width-3]) + "..."
	}
	return s
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	youStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence marks the sentence of text sharing the most distinct
// tokens with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sent = highlightStyle.Render(sent)
		}
		sentences[i] = sent
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := textutil.ContentTokens(s)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	for t := range toTokenSet(sentence) {
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}

// Run starts the chat on the terminal and blocks until the user quits.
func Run(p Pipeline, session string, build service.BuildHandle) error {
	_, err := tea.NewProgram(New(p, session, build), tea.WithAltScreen()).Run()
	return err
}
