// ABOUTME: Entry point for the OpsDeck console binaries.
// ABOUTME: Loads configuration and dispatches to the serve, console, and views commands.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/jfeddern/OpsDeck/internal/config"
	"github.com/jfeddern/OpsDeck/internal/console"
	"github.com/jfeddern/OpsDeck/internal/engine"
	"github.com/jfeddern/OpsDeck/internal/rbac"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Getenv).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	envFile string
	getenv  func(string) string
	logger  *logrus.Logger
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	a := &app{cfg: config.Default(), getenv: getenv}

	root := &cobra.Command{
		Use:           "opsdeck",
		Short:         "OpsDeck - role-gated security operations console",
		Version:       engine.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	a.cfg.BindFlags(root.PersistentFlags())

	root.AddCommand(a.serveCmd(), a.consoleCmd(), a.viewsCmd())
	return root
}

// load applies the environment over the parsed flags and builds the logger
func (a *app) load(logOut io.Writer) error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}
	if err := a.cfg.ApplyEnv(a.getenv); err != nil {
		return err
	}
	logger, err := a.cfg.NewLogger(logOut)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web console over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, err := engine.NewEngine(ctx, a.cfg, a.logger)
			if err != nil {
				return fmt.Errorf("failed to create engine: %w", err)
			}
			defer eng.Close(context.Background())

			go func() {
				<-ctx.Done()
				a.logger.Info("Received shutdown signal")
			}()

			return eng.Start(ctx)
		},
	}
}

func (a *app) consoleCmd() *cobra.Command {
	var codeFile, logFile string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Run one session in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var code string
			if codeFile != "" {
				data, err := os.ReadFile(codeFile)
				if err != nil {
					return fmt.Errorf("failed to read code file: %w", err)
				}
				code = string(data)
			}

			// The terminal belongs to the UI; logs go to a file or nowhere
			a.logger.SetOutput(io.Discard)
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer f.Close()
				a.logger.SetOutput(f)
			}

			eng, err := engine.NewEngine(ctx, a.cfg, a.logger)
			if err != nil {
				return fmt.Errorf("failed to create engine: %w", err)
			}
			defer eng.Close(context.Background())

			return console.Run(ctx, console.Options{
				Shell: eng.Sessions().Create(),
				Code:  code,
			})
		},
	}
	cmd.Flags().StringVar(&codeFile, "code-file", "", "Source file submitted to the security hub on x")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Append logs to this file while the console runs")
	return cmd
}

func (a *app) viewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "Print which roles may open and edit each view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.cfg.Registry()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderMatrix(rbac.NewController(reg).Matrix()))
			return nil
		},
	}
}

var (
	matrixHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Padding(0, 1)
	matrixCell   = lipgloss.NewStyle().Padding(0, 1)
)

// renderMatrix draws one row per view and one column per role
func renderMatrix(perms []rbac.Permission) string {
	headers := []string{"VIEW", "LABEL"}
	for _, r := range rbac.Roles() {
		headers = append(headers, r.String())
	}

	var rows [][]string
	index := map[rbac.ViewID]int{}
	for _, p := range perms {
		i, ok := index[p.View.ID]
		if !ok {
			i = len(rows)
			index[p.View.ID] = i
			rows = append(rows, []string{string(p.View.ID), p.View.Label})
		}
		rows[i] = append(rows[i], access(p))
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return matrixHeader
			}
			return matrixCell
		})
	return t.Render()
}

func access(p rbac.Permission) string {
	var parts []string
	if p.CanOpen {
		parts = append(parts, "open")
	}
	if p.CanEdit {
		parts = append(parts, "edit")
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "+")
}
