package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"courtpack/internal/domain"
	"courtpack/internal/extract"
)

// ClaimPort is the TUI-facing subset of the grounder service.
type ClaimPort interface {
	Answer(query, packID string, topK int) (domain.GroundedAnswer, error)
	Packs() []string
}

// Model is the Bubble Tea model for the interactive query session.
type Model struct {
	service   ClaimPort
	input     textinput.Model
	viewport  viewport.Model
	answer    domain.GroundedAnswer
	answered  bool
	packs     []string
	packIdx   int // 0 means all packs
	topK      int
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a new TUI model instance. topK bounds how many supporting
// chunks each answer carries.
func New(service ClaimPort, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about a claim pack and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		input:    ti,
		viewport: vp,
		packs:    service.Packs(),
		topK:     topK,
		status:   "Index loaded. Tab cycles packs, up/down cycles evidence.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + pack line
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				ans, err := m.service.Answer(q, m.currentPack(), m.topK)
				if err != nil {
					m.status = "Error: " + err.Error()
					m.answered = false
				} else {
					m.status = fmt.Sprintf("Answer for %q in %s", q, m.packLabel())
					m.answer = ans
					m.answered = true
					m.cursor = 0
					m.lastQuery = q
				}
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "tab":
			// cycle through: all packs, then each pack
			m.packIdx = (m.packIdx + 1) % (len(m.packs) + 1)
			m.status = "Pack: " + m.packLabel()
			return m, nil
		case "down":
			if n := len(m.answer.SupportingChunks); m.answered && n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "up":
			if n := len(m.answer.SupportingChunks); m.answered && n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and the current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("courtpack")
	packs := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("Pack: " + m.packLabel())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + packs + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) currentPack() string {
	if m.packIdx == 0 {
		return ""
	}
	return m.packs[m.packIdx-1]
}

func (m Model) packLabel() string {
	if pack := m.currentPack(); pack != "" {
		return pack
	}
	return "all"
}

func (m Model) renderAnswer() string {
	if !m.answered {
		return "No answer yet."
	}
	if m.answer.Status == domain.AnswerNotFound {
		return notFoundStyle.Render("No grounded answer found in the indexed packs.")
	}

	var b strings.Builder
	for _, fv := range m.answer.Fields {
		line := fmt.Sprintf("%s: %s  (%s p.%d)",
			extract.Label(fv.Field), fv.Value, fv.Citation.SourcePath, fv.Citation.PageNumber)
		b.WriteString(fieldStyle.Render(line))
		b.WriteString("\n")
	}
	if len(m.answer.Fields) == 0 {
		b.WriteString(m.answer.Text)
		b.WriteString("\n")
	}

	if n := len(m.answer.SupportingChunks); n > 0 {
		ch := m.answer.SupportingChunks[m.cursor]
		b.WriteString(fmt.Sprintf("\nEvidence %d/%d  %s p.%d\n\n", m.cursor+1, n, ch.SourcePath, ch.PageNumber))
		b.WriteString(highlightBestSentence(ch.Text, m.lastQuery))
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	fieldStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	notFoundStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

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
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
