package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/smileynet/fiche"
	"github.com/smileynet/fiche/internal/config"
	"github.com/smileynet/fiche/internal/contact"
	"github.com/smileynet/fiche/internal/form"
	"github.com/smileynet/fiche/internal/logging"
	"github.com/smileynet/fiche/internal/store"
	"github.com/smileynet/fiche/internal/web"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI is the top-level command structure for fiche.
type CLI struct {
	Version kong.VersionFlag `help:"Show version." short:"V"`
	Form    FormCmd          `cmd:"" help:"Open the terminal intake form."`
	Add     AddCmd           `cmd:"" help:"Submit one contact record."`
	List    ListCmd          `cmd:"" help:"Print stored records."`
	Export  ExportCmd        `cmd:"" help:"Write the CSV export."`
	Serve   ServeCmd         `cmd:"" help:"Serve the web intake form."`
}

// loadConfig loads .env, then layered config from user and project paths,
// then env overrides.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.LoadLayered(
		os.ExpandEnv("$HOME/.config/fiche/config.yaml"),
		".fiche/config.yaml",
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads config and builds the logger and store. The returned closer
// releases the log file.
func setup(console io.Writer) (*config.Config, zerolog.Logger, *store.Store, io.Closer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, zerolog.Nop(), nil, nil, err
	}
	log, closer, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Console: console,
	})
	if err != nil {
		return nil, zerolog.Nop(), nil, nil, err
	}
	st := store.New(cfg.Storage.Path,
		store.WithLogger(log),
		store.WithExportFilename(cfg.Export.Filename),
	)
	return cfg, log, st, closer, nil
}

// --- Form command ---

// FormCmd opens the interactive terminal form.
type FormCmd struct{}

// teaRunner abstracts Bubble Tea program execution for testing.
type teaRunner interface {
	Run() (tea.Model, error)
}

// Run builds real dependencies and launches the form TUI.
func (f *FormCmd) Run() error {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if !isTTY {
		return errors.New("form: requires a terminal (TTY)")
	}

	// Console logging would corrupt the TUI; only the file sink is used.
	cfg, _, st, closer, err := setup(nil)
	if err != nil {
		return fmt.Errorf("form: %w", err)
	}
	defer closer.Close()

	m := form.NewModel(st, cfg.Export.Dir)
	prog := tea.NewProgram(m, tea.WithAltScreen())
	return f.run(isTTY, prog)
}

// run executes the tea program, enabling testable wiring.
func (f *FormCmd) run(isTTY bool, prog teaRunner) error {
	if !isTTY {
		return errors.New("form: requires a terminal (TTY)")
	}
	_, err := prog.Run()
	return err
}

// --- Add command ---

// submitter abstracts store.Store.Submit for testing.
type submitter interface {
	Submit(contact.Candidate) (store.Confirmation, error)
}

// AddCmd submits one record without the interactive form.
type AddCmd struct {
	LastName   string `help:"Last name (required)."`
	FirstName  string `help:"First name."`
	Age        string `help:"Age, ${min_age}-${max_age}."`
	BirthDate  string `help:"Birth date, YYYY-MM-DD."`
	Address    string `help:"Postal address."`
	PostalCode string `help:"Postal code, at most ${postal_max} characters."`
	Status     string `help:"France Travail / Mission Locale registration: Oui, Non or Ne sait pas." default:"Oui"`
	Phone      string `help:"Phone number (required)."`
	Notes      string `help:"Free-text observations."`
}

// Run builds the store and submits the record.
func (a *AddCmd) Run() error {
	_, _, st, closer, err := setup(os.Stderr)
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	defer closer.Close()
	return a.run(os.Stdout, st)
}

func (a *AddCmd) run(w io.Writer, s submitter) error {
	in := contact.Input{
		LastName:   a.LastName,
		FirstName:  a.FirstName,
		Age:        a.Age,
		BirthDate:  a.BirthDate,
		Address:    a.Address,
		PostalCode: a.PostalCode,
		Status:     a.Status,
		Phone:      a.Phone,
		Notes:      a.Notes,
	}
	c, err := in.Parse()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}
	conf, err := s.Submit(c)
	if err != nil {
		if errors.Is(err, contact.ErrValidation) {
			return fmt.Errorf("add: %s: %w", contact.RequiredMessage, err)
		}
		return fmt.Errorf("add: %w", err)
	}
	_, _ = fmt.Fprintln(w, conf.Message())
	return nil
}

// --- List command ---

// loader abstracts store.Store.Load for testing.
type loader interface {
	Load() (store.Collection, error)
}

// ListCmd prints the stored records as a table.
type ListCmd struct{}

// Run builds the store and prints its records.
func (l *ListCmd) Run() error {
	_, _, st, closer, err := setup(os.Stderr)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	defer closer.Close()
	return l.run(os.Stdout, st)
}

func (l *ListCmd) run(w io.Writer, s loader) error {
	col, err := s.Load()
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if col.Len() == 0 {
		_, _ = fmt.Fprintln(w, "No records.")
		return nil
	}

	rows := make([][]string, col.Len())
	for i, r := range col.Records {
		rows[i] = r.Values()
	}
	t := ltable.New().
		Border(lipgloss.NormalBorder()).
		Headers(col.Columns()...).
		Rows(rows...)
	_, _ = fmt.Fprintln(w, t.Render())
	_, _ = fmt.Fprintf(w, "%d record(s)\n", col.Len())
	return nil
}

// --- Export command ---

// exporter abstracts store.Store.ExportSnapshot for testing.
type exporter interface {
	ExportSnapshot() (store.Snapshot, error)
}

// ExportCmd writes the CSV export.
type ExportCmd struct {
	Output string `short:"o" help:"Output file, or - for stdout. Defaults to the export filename in the export directory."`
}

// Run builds the store and writes the export.
func (e *ExportCmd) Run() error {
	cfg, _, st, closer, err := setup(os.Stderr)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer closer.Close()
	return e.run(os.Stdout, st, cfg.Export.Dir)
}

func (e *ExportCmd) run(w io.Writer, s exporter, defaultDir string) error {
	snap, err := s.ExportSnapshot()
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if e.Output == "-" {
		if _, err := w.Write(snap.Data); err != nil {
			return fmt.Errorf("export: writing stdout: %w", err)
		}
		return nil
	}

	dir := defaultDir
	if e.Output != "" {
		dir = filepath.Dir(e.Output)
		snap.Filename = filepath.Base(e.Output)
	}
	path, err := snap.Save(dir)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d record(s) to %s\n", snap.Count, path)
	return nil
}

// --- Serve command ---

// ServeCmd serves the web intake form.
type ServeCmd struct {
	Addr string `help:"Listen address. Overrides server.addr."`
}

// Run builds the web server and serves until interrupted.
func (s *ServeCmd) Run() error {
	cfg, log, st, closer, err := setup(os.Stderr)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer closer.Close()

	assets := fiche.OverlayFS(cfg.Server.TemplatesDir, fiche.Templates)
	srv, err := web.New(st, assets, fiche.FormTemplate, log)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ListenAndServe(ctx, s.addr(cfg), web.Options{
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
}

// addr returns the flag address when set, else the configured one.
func (s *ServeCmd) addr(cfg *config.Config) string {
	if a := strings.TrimSpace(s.Addr); a != "" {
		return a
	}
	return cfg.Server.Addr
}

const (
	exitSuccess    = 0
	exitValidation = 1
	exitSetup      = 2
)

// exitCode maps an error to the appropriate exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	if errors.Is(err, contact.ErrValidation) || errors.Is(err, contact.ErrInputConstraint) {
		return exitValidation
	}
	return exitSetup
}

func vars() kong.Vars {
	return kong.Vars{
		"version":    version + " " + commit + " " + date,
		"min_age":    fmt.Sprint(contact.MinAge),
		"max_age":    fmt.Sprint(contact.MaxAge),
		"postal_max": fmt.Sprint(contact.PostalCodeMaxLen),
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("fiche"),
		kong.Description("Contact intake form backed by a CSV file."),
		vars(),
	)
	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
