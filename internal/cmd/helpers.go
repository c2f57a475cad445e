package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/adamancini/actionstatus/internal/config"
	"github.com/adamancini/actionstatus/internal/feed"
	"github.com/adamancini/actionstatus/internal/logging"
	"github.com/adamancini/actionstatus/internal/metrics"
	"github.com/adamancini/actionstatus/internal/output"
	"github.com/adamancini/actionstatus/internal/state"
	"github.com/adamancini/actionstatus/internal/update"
)

// cfg is loaded once per invocation by setup.
var cfg = config.Default()

// stdout receives command output.
var stdout io.Writer = os.Stdout

var errNoSource = errors.New("nothing to monitor: set status_file or repos in the config file")

// setup loads the config file, if any, and initialises logging.
func setup() error {
	path, err := config.FindConfig(configPath)
	switch {
	case errors.Is(err, config.ErrNotFound):
		cfg = config.Default()
	case err != nil:
		return err
	default:
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if err := logging.Init(effectiveLevel(), effectiveFormat(), logFile); err != nil {
		return err
	}
	if path != "" {
		log.Debugf("using config file: %s", path)
	}
	return nil
}

// effectiveLevel applies --log-level, then --verbose and --quiet, over the config file.
func effectiveLevel() string {
	switch {
	case logLevel != "":
		return logLevel
	case verbose:
		return "debug"
	case quiet:
		return "error"
	default:
		return cfg.LogLevel
	}
}

func effectiveFormat() string {
	if logFormat != "" {
		return logFormat
	}
	return cfg.LogFormat
}

func newWriter() *output.Writer {
	format, _ := output.ParseFormat(outputFormat)
	return output.NewWriter(stdout, format).WithQuiet(quiet)
}

// getStateReader returns the reader for the configured item source.
func getStateReader() (state.Reader, error) {
	if cfg.StatusFile != "" {
		return &state.FileReader{Path: cfg.StatusFile}, nil
	}
	if len(cfg.Repos) > 0 {
		return state.NewCLIReader(cfg.Repos, ""), nil
	}
	return nil, errNoSource
}

// source is the monitored item provider together with how it stays current.
type source struct {
	provider *state.MemoryProvider
	file     *state.FileProvider // nil when polling gh
	reader   state.Reader
}

func openSource(ctx context.Context) (*source, error) {
	reader, err := getStateReader()
	if err != nil {
		return nil, err
	}

	if fr, ok := reader.(*state.FileReader); ok {
		fp, err := state.NewFileProvider(ctx, fr.Path)
		if err != nil {
			return nil, err
		}
		return &source{provider: fp.MemoryProvider, file: fp, reader: reader}, nil
	}

	items, err := reader.Read(ctx)
	if err != nil {
		return nil, err
	}
	return &source{provider: state.NewMemoryProvider(items...), reader: reader}, nil
}

// refresh re-reads the items from the source.
func (s *source) refresh(ctx context.Context) error {
	if s.file != nil {
		return s.file.Reload(ctx)
	}
	items, err := s.reader.Read(ctx)
	if err != nil {
		return err
	}
	s.provider.Set(items)
	return nil
}

// newSession starts the updater. It fails when no feed is configured or the
// running build has no release version to compare against.
func newSession(p update.Presenter, rec metrics.Recorder) (*feed.Session, error) {
	if cfg.Feed.Owner == "" || cfg.Feed.Repo == "" {
		return nil, errors.New("update feed is not configured")
	}
	if _, err := feed.ParseVersion(appVersion); err != nil {
		return nil, fmt.Errorf("version %q cannot be compared with releases: %w", appVersion, err)
	}

	checker := feed.NewGitHubChecker(appVersion, cfg.Feed.Owner, cfg.Feed.Repo)
	token := cfg.Feed.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token != "" {
		checker = checker.WithToken(token)
	}

	ctrl := update.NewController(p).WithMetrics(rec)
	return feed.NewSession(checker, ctrl), nil
}

func permissionDefaults() update.PermissionResponse {
	return update.PermissionResponse{
		AutomaticUpdateChecks: cfg.Updates.AutomaticChecks,
		SendSystemProfile:     cfg.Updates.SendSystemProfile,
	}
}
