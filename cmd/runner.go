package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/desertthunder/cadence/internal/wellness"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	db         *sql.DB
	engine     *tasks.CalendarEngine
	user       *models.User
	inbox      tasks.InviteFinder
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Engine and User are opened from the configured database on first use when nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Engine     *tasks.CalendarEngine
	User       *models.User
	Inbox      tasks.InviteFinder // replaces the Gmail client when set
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Now        func() time.Time
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		engine:     opts.Engine,
		user:       opts.User,
		inbox:      opts.Inbox,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		now:        opts.Now,
	}
}

// SetLogger swaps the logger, e.g. to keep log lines out of the TUI.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, calendarCommand, cycleCommand, symptomsCommand,
		wellnessCommand, gmailCommand, healthkitCommand, eventsCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// load reads the config file named by --config when it exists, keeping defaults otherwise.
func (r *Runner) load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := shared.LoadEnvFiles(); err != nil {
		return ctx, err
	}

	path := cmd.String("config")
	r.configPath = path
	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.config.ApplyEnv()
	}

	if cmd.Bool("debug") {
		r.config.Log.Level = "debug"
	}
	shared.ApplyLogLevel(r.logger, r.config.Log.Level)
	return ctx, nil
}

// open connects the database, builds the engine and ensures the profile user exists.
func (r *Runner) open() error {
	if r.engine != nil && r.user != nil {
		return nil
	}

	if r.engine == nil {
		if err := r.config.Validate(); err != nil {
			return err
		}

		db, err := shared.OpenMigrated(r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db

		r.engine = tasks.NewEngineFromConfig(r.config, tasks.NewStores(db), r.predictor(), r.logger)
	}

	profile := r.config.Profile
	user, err := r.engine.Stores().Users.Ensure(profile.Email, profile.Name, profile.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load profile user: %w", err)
	}
	r.user = user
	return nil
}

// predictor uses the configured language model when an API key is set, and the heuristic otherwise.
func (r *Runner) predictor() *wellness.Predictor {
	var llm wellness.LLM
	if svc, err := services.NewOpenAIService(r.config.Credentials.OpenAI, r.httpClient); err == nil {
		llm = svc
	} else {
		r.logger.Debug("language model disabled", "error", err)
	}
	return wellness.NewPredictor(llm, r.config.Wellness.FallbackJitter, r.logger)
}

// Close releases the database opened by the runner.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// today is the start of the current day in the profile user's zone.
func (r *Runner) today() time.Time {
	return shared.StartOfDay(r.now().In(r.user.Location()))
}

// dayFlag parses a YYYY-MM-DD flag in the user's zone, defaulting to today.
func (r *Runner) dayFlag(cmd *cli.Command, name string) (time.Time, error) {
	s := cmd.String(name)
	if s == "" {
		return r.today(), nil
	}
	day, err := shared.ParseDay(s, r.user.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --%s: %v", shared.ErrInvalidArgument, name, err)
	}
	return day, nil
}

// dayRange reads --from and --to (inclusive) and returns [from, to+1d).
func (r *Runner) dayRange(cmd *cli.Command, days int) (time.Time, time.Time, error) {
	from, err := r.dayFlag(cmd, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	to := from.AddDate(0, 0, days)
	if cmd.String("to") != "" {
		last, err := r.dayFlag(cmd, "to")
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = last.AddDate(0, 0, 1)
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: --to must not be before --from", shared.ErrInvalidArgument)
	}
	return from, to, nil
}

func (r *Runner) provider(cmd *cli.Command) (models.Provider, error) {
	p, err := models.ParseProvider(cmd.String("provider"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrUnsupportedProvider, err)
	}
	return p, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
