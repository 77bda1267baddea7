package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/massctl/internal/auth"
	"github.com/desertthunder/massctl/internal/cache"
	"github.com/desertthunder/massctl/internal/library"
	"github.com/desertthunder/massctl/internal/repositories"
	"github.com/desertthunder/massctl/internal/shared"
	"github.com/desertthunder/massctl/internal/transport"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Storage, the session manager and the library are wired on first use so commands that
// only touch configuration never open the database.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	db        *sql.DB
	ownsDB    bool
	encryptor *repositories.Encryptor
	settings  *repositories.SettingsRepository
	secrets   *repositories.SecretRepository
	responses *repositories.ResponseRepository
	client    *transport.Client
	manager   *auth.Manager
	library   *library.Service
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// DB is used as-is when set; otherwise Config.Database.Path is opened on first use.
	DB        *sql.DB
	Encryptor *repositories.Encryptor
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

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		db:         opts.DB,
		encryptor:  opts.Encryptor,
	}
}

// SetLogger replaces the logger. Call it before the first command touches storage.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, libraryCommand, playerCommand, cacheCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// open wires storage, the transport, the session manager and the library once.
func (r *Runner) open(ctx context.Context) error {
	if r.manager != nil {
		return nil
	}

	if r.db == nil {
		db, err := shared.NewDatabase(r.config.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
		r.db = db
		r.ownsDB = true
	}

	if err := shared.RunMigrations(ctx, r.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if r.encryptor == nil {
		enc, err := repositories.LoadEncryptor(r.config.Secrets.KeyPath)
		switch {
		case errors.Is(err, shared.ErrMissingKey):
			r.logger.Debug("no secret key found", "path", r.config.Secrets.KeyPath)
		case err != nil:
			return fmt.Errorf("failed to load secret key: %w", err)
		default:
			r.encryptor = enc
		}
	}

	r.settings = repositories.NewSettingsRepository(r.db)
	r.secrets = repositories.NewSecretRepository(r.db, r.encryptor, r.logger)
	r.responses = repositories.NewResponseRepository(r.db)

	r.client = transport.New(transport.Options{
		Logger:     shared.WithLogger(r.logger, "component", "transport"),
		DeviceName: r.config.Auth.DeviceName,
		TokenName:  r.config.Auth.TokenName,
	})

	r.manager = auth.NewManager(auth.Options{
		Transport: r.client,
		Settings:  r.settings,
		Secrets:   r.secrets,
		Detector: auth.NewDetector(auth.DetectorOpts{
			HTTPClient: r.httpClient,
			Timeout:    r.config.Auth.DetectTimeout,
			Logger:     r.logger,
		}),
		HTTPClient: r.httpClient,
		Logger:     shared.WithLogger(r.logger, "component", "auth"),
		Retry: auth.RetryPolicy{
			MaxAttempts: r.config.Auth.ConnectAttempts,
			Interval:    r.config.Auth.ConnectInterval,
		},
		LoginTimeout: r.config.Auth.LoginTimeout,
	})

	r.library = library.NewService(library.Options{
		API:        r.client,
		Authorized: r.manager.IsAuthenticated,
		Cache: cache.Options{
			TTL:            r.config.Cache.TTL,
			MaxEntries:     r.config.Cache.MaxEntries,
			RefreshTimeout: r.config.Cache.RefreshTimeout,
			Store:          r.responses,
			Logger:         shared.WithLogger(r.logger, "component", "cache"),
		},
		Logger: r.logger,
	})

	return nil
}

// connect opens storage and restores the saved session.
func (r *Runner) connect(ctx context.Context) error {
	if err := r.open(ctx); err != nil {
		return err
	}
	if r.manager.IsAuthenticated() {
		return nil
	}
	if err := r.manager.Restore(ctx); err != nil {
		return fmt.Errorf("%s: %w", auth.UserMessage(err), err)
	}
	return nil
}

// Close waits for background cache refreshes, then releases the connection and database.
// It is safe to call more than once.
func (r *Runner) Close() error {
	if r.library != nil {
		r.library.Wait()
		r.library.Close()
		r.library = nil
	}
	if r.client != nil {
		if err := r.client.Close(); err != nil {
			r.logger.Debug("transport close failed", "error", err)
		}
		r.client = nil
	}
	r.manager = nil

	if r.ownsDB && r.db != nil {
		err := r.db.Close()
		r.db = nil
		return err
	}
	return nil
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
