package repomon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skaphos/repomon/internal/config"
	"github.com/skaphos/repomon/internal/engine"
	"github.com/skaphos/repomon/internal/model"
)

const shutdownTimeout = 30 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch [repo-path]",
	Short: "Check monitored branches continuously on their intervals",
	Long: "Runs every monitored branch on its configured interval and streams one status message per cycle. " +
		"SIGHUP reloads the config file; SIGINT or SIGTERM stops after in-flight checks finish.",
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	addFormatFlag(watchCmd, formatJSON)
	addNoHeadersFlag(watchCmd)
	addWorktreeFlag(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

// watchSession owns the running scheduler of one watch invocation.
type watchSession struct {
	cmd       *cobra.Command
	scheduler *engine.Scheduler
	cfgPath   string
	// only restricts reloads to one repository when non-empty.
	only   string
	logger *zap.SugaredLogger
}

func runWatch(cmd *cobra.Command, args []string) error {
	rawFormat, _ := cmd.Flags().GetString("format")
	noHeaders, _ := cmd.Flags().GetBool("no-headers")
	worktree, _ := cmd.Flags().GetBool("worktree")
	format, err := validateFormat(rawFormat)
	if err != nil {
		return err
	}
	s, err := loadSettings(settings)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var only string
	if len(args) == 1 {
		if cfg, only, err = selectRepository(cfg, args[0]); err != nil {
			return err
		}
	}

	logger, err := newLogger(cmd, s)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	setColorOutputMode(cmd, format)

	publisher := engine.NewChannelPublisher(s.Buffer)
	checker := newChecker(s, logger, checkerConfig{publisher: publisher, worktree: worktree, progress: progressToLog(logger)})
	scheduler, err := engine.NewScheduler(cfg, engine.SchedulerOptions{
		Checker:     checker,
		Pool:        engine.NewRepositoryPool(repositoryOpener()),
		MinInterval: s.MinInterval,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		streamMessages(cmd, publisher.Messages(), format, noHeaders)
	}()

	if err := scheduler.Start(ctx); err != nil {
		publisher.Close()
		<-printed
		return err
	}
	infof(cmd, "watching %d branch(es) from %s", len(scheduler.Tasks()), cfgPath)

	session := &watchSession{cmd: cmd, scheduler: scheduler, cfgPath: cfgPath, only: only, logger: logger}
	for running := true; running; {
		select {
		case <-ctx.Done():
			running = false
		case <-reload:
			session.reload(ctx)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = scheduler.Shutdown(shutdownCtx)
	publisher.Close()
	<-printed
	if dropped := publisher.Dropped(); dropped > 0 {
		logger.Warnw("status messages dropped because output fell behind", "count", dropped)
	}
	return err
}

// reload re-reads the config file and applies it. A config that fails to
// load or validate is logged and the running snapshot is kept.
func (w *watchSession) reload(ctx context.Context) {
	cfg, err := config.Load(w.cfgPath)
	if err == nil && w.only != "" {
		cfg, err = restrictTo(cfg, w.only)
	}
	if err == nil {
		err = w.scheduler.Reconfigure(ctx, cfg)
	}
	if err != nil {
		w.logger.Errorw("config reload rejected; keeping previous config", "path", w.cfgPath, "error", err)
		return
	}
	w.logger.Infow("config reloaded", "path", w.cfgPath, "tasks", len(w.scheduler.Tasks()))
}

func restrictTo(cfg *config.Config, name string) (*config.Config, error) {
	repo, ok := cfg.Repos[name]
	if !ok {
		return nil, fmt.Errorf("repository %q is no longer configured", name)
	}
	restricted := cfg.Clone()
	restricted.Repos = map[string]config.Repository{name: repo}
	return restricted, nil
}

func streamMessages(cmd *cobra.Command, msgs <-chan model.StatusMessage, format string, noHeaders bool) {
	headers := !noHeaders
	for msg := range msgs {
		err := writeMessages(cmd, []model.StatusMessage{msg}, format, !headers)
		logOutputWriteFailure(cmd, "watch output", err)
		headers = false
	}
}
