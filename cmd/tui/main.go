package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"

	"codeberg.org/vestilook/server/internal/tui"
)

func main() {
	if !term.IsTerminal(os.Stdout.Fd()) {
		fmt.Println("vestilook needs an interactive terminal.")
		os.Exit(1)
	}

	e, err := tui.LoadEnv()
	if err != nil {
		fmt.Printf("error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if e.AccessToken == "" {
		fmt.Println("VESTILOOK_ACCESS_TOKEN is not set. sign in on the web and copy your access token.")
		os.Exit(1)
	}

	app := tui.NewApp(e.Config())
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())

	if _, err := p.Run(); err != nil {
		fmt.Printf("error running vestilook: %v\n", err)
		os.Exit(1)
	}
}
