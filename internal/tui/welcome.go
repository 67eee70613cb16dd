package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// returns a new welcome screen
func NewWelcome(mode string, streaming bool) *Welcome {
	commands := []Command{
		{Name: "submit", Usage: "submit <garment.jpg>", Description: "try a garment on your persona"},
		{Name: "watch", Usage: "watch <id>", Description: "follow a generation until it finishes"},
	}

	if streaming {
		commands = append(commands, Command{Name: "stream", Usage: "stream <id>", Description: "follow a generation over a live connection"})
	}

	commands = append(commands,
		Command{Name: "history", Usage: "history", Description: "browse past generations"},
		Command{Name: "consent", Usage: "consent", Description: "read and accept the consent policy"},
		Command{Name: "quit", Usage: "quit", Description: "exit vestilook"},
	)

	return &Welcome{
		mode:     mode,
		commands: commands,
	}
}

func (m *Welcome) Update(msg tea.Msg) (*Welcome, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			cmd := m.executeCommand()
			m.input = ""
			return m, cmd
		case "backspace":
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case " ":
			m.input += " "
		default:
			if msg.Type == tea.KeyRunes {
				m.input += string(msg.Runes)
			}
		}
	}

	return m, nil
}

func (m *Welcome) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(logo))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render("see it on you before you buy it"))
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("mode: " + strings.ToUpper(m.mode)))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("commands:"))
	b.WriteString("\n\n")

	for _, cmd := range m.commands {
		line := fmt.Sprintf("  %s %s",
			commandStyle.Render(cmd.Usage),
			commandDescStyle.Render("- "+cmd.Description),
		)
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")

	b.WriteString(promptStyle.Render("> ") + inputStyle.Render(m.input+"_"))
	b.WriteString("\n\n")

	b.WriteString(helpStyle.Render("type a command and press enter. press ctrl+c to quit."))

	return b.String()
}

func (m *Welcome) available(name string) bool {
	return lo.ContainsBy(m.commands, func(c Command) bool { return c.Name == name })
}

func (m *Welcome) executeCommand() tea.Cmd {
	fields := strings.Fields(m.input)
	if len(fields) == 0 {
		return nil
	}

	name, args := fields[0], fields[1:]

	if !m.available(name) {
		return errorCmd(fmt.Errorf("unknown command: %s.", name))
	}

	switch name {
	case "quit":
		return tea.Quit

	case "watch", "stream":
		if len(args) != 1 {
			return errorCmd(fmt.Errorf("usage: %s <id>.", name))
		}

		if _, err := uuid.Parse(args[0]); err != nil {
			return errorCmd(fmt.Errorf("not a generation id: %s.", args[0]))
		}

		msg := EnterWatchMsg{jobID: args[0], stream: name == "stream"}
		return func() tea.Msg { return msg }

	case "submit":
		if len(args) == 0 {
			return errorCmd(errors.New("usage: submit <garment.jpg>."))
		}

		// paths may contain spaces
		path := strings.Join(args, " ")
		return func() tea.Msg { return EnterSubmitMsg{path: path} }

	case "history":
		return func() tea.Msg { return EnterHistoryMsg{} }

	case "consent":
		return func() tea.Msg { return EnterConsentMsg{} }

	default:
		return nil
	}
}

func errorCmd(err error) tea.Cmd {
	return func() tea.Msg {
		return ErrorMsg{err: err}
	}
}
