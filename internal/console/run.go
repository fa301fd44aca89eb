// ABOUTME: Entry point for the interactive terminal console.
// ABOUTME: Runs the bubbletea program until the user quits or the context ends.

package console

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jfeddern/OpsDeck/internal/shell"
)

// Options configure a console run
type Options struct {
	Shell *shell.Shell
	// Code is submitted to the security hub when the user presses x
	Code string
}

// Run blocks until the program exits
func Run(ctx context.Context, opts Options) error {
	if opts.Shell == nil {
		return fmt.Errorf("console requires a shell")
	}

	p := tea.NewProgram(newModel(opts.Shell, opts.Code), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
