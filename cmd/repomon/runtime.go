package repomon

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skaphos/repomon/internal/config"
	"github.com/skaphos/repomon/internal/credentials"
	"github.com/skaphos/repomon/internal/engine"
	"github.com/skaphos/repomon/internal/gitx"
	"github.com/skaphos/repomon/internal/logging"
)

var (
	// openRepository is overridable in tests.
	openRepository = func(path string) (engine.Repository, error) {
		repo, err := gitx.Open(path)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
	// credentialProvider is overridable in tests.
	credentialProvider = credentials.Default
)

func repositoryOpener() engine.Opener {
	return engine.OpenerFunc(openRepository)
}

func newLogger(cmd *cobra.Command, s runtimeSettings) (*zap.SugaredLogger, error) {
	logger, err := logging.NewFactory().CreateLogger(s.LogLevel, s.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

type checkerConfig struct {
	publisher engine.Publisher
	worktree  bool
	progress  engine.ProgressFunc
}

func newChecker(s runtimeSettings, logger *zap.SugaredLogger, cc checkerConfig) *engine.Checker {
	return engine.NewChecker(engine.CheckerOptions{
		Fetcher: &engine.FetchCoordinator{
			Credentials: credentialProvider(),
			Progress:    cc.progress,
			Timeout:     s.Timeout,
		},
		Emitter:         engine.NewEmitter(cc.publisher),
		Classify:        gitx.ClassifyError,
		IncludeWorktree: cc.worktree,
		Logger:          logger,
	})
}

// progressToLog routes fetch progress to the debug log.
func progressToLog(logger *zap.SugaredLogger) engine.ProgressFunc {
	return func(repository, remote string) io.Writer {
		return &logLineWriter{logger: logger.With("repository", repository, "remote", remote)}
	}
}

type logLineWriter struct {
	logger *zap.SugaredLogger
}

func (w *logLineWriter) Write(p []byte) (int, error) {
	for _, line := range strings.FieldsFunc(string(p), func(r rune) bool { return r == '\n' || r == '\r' }) {
		if line = strings.TrimSpace(line); line != "" {
			w.logger.Debugw("fetch progress", "text", line)
		}
	}
	return len(p), nil
}

// loadConfig resolves and loads the repository set for runtime commands.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	cfgPath, err := config.ResolveConfigPath(flagConfig, cwd)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}
	debugf(cmd, "using config %s", cfgPath)
	return cfg, cfgPath, nil
}

// selectRepository restricts cfg to the repository whose working tree
// contains path. The returned config shares nothing with cfg.
func selectRepository(cfg *config.Config, path string) (*config.Config, string, error) {
	name, err := repositoryAt(cfg, path)
	if err != nil {
		return nil, "", err
	}
	selected := cfg.Clone()
	selected.Repos = map[string]config.Repository{name: selected.Repos[name]}
	return selected, name, nil
}

// repositoryAt returns the configured name of the repository containing path.
func repositoryAt(cfg *config.Config, path string) (string, error) {
	root, err := repositoryRoot(path)
	if err != nil {
		return "", err
	}
	for _, name := range cfg.RepoNames() {
		if samePath(cfg.RepoPath(name), root) {
			return name, nil
		}
	}
	return "", fmt.Errorf("no configured repository at %s", root)
}

func repositoryRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	repo, err := gitx.Open(abs)
	if err != nil {
		return "", err
	}
	defer func() { _ = repo.Close() }()
	return repo.Root(), nil
}

func samePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if a == b {
		return true
	}
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	return errA == nil && errB == nil && ra == rb
}
