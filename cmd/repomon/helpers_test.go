package repomon

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/skaphos/repomon/internal/config"
	"github.com/skaphos/repomon/internal/credentials"
	"github.com/skaphos/repomon/internal/engine"
	"github.com/skaphos/repomon/internal/model"
)

// fakeRepository serves fixed branches and never touches the network.
type fakeRepository struct {
	refs    []model.BranchRef
	ahead   map[model.CommitID]int
	closed  bool
	fetched []string
}

func (f *fakeRepository) Branches(_ context.Context, scope model.Scope) ([]model.BranchRef, error) {
	var out []model.BranchRef
	for _, ref := range f.refs {
		if scope.Includes(ref.Scope) {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (f *fakeRepository) Fetch(_ context.Context, remote string, _ credentials.Provider, _ io.Writer) (model.FetchStats, error) {
	f.fetched = append(f.fetched, remote)
	return model.FetchStats{Remote: remote, UpToDate: true}, nil
}

func (f *fakeRepository) AheadBehind(_ context.Context, local, remote model.CommitID) (model.Divergence, error) {
	if local == remote {
		return model.Divergence{}, nil
	}
	return model.Divergence{Ahead: f.ahead[local]}, nil
}

func (f *fakeRepository) WorktreeStatus(context.Context) ([]model.PathStatus, error) {
	return nil, nil
}

func (f *fakeRepository) RemoteNames(context.Context) ([]string, error) {
	return []string{"gh", "origin"}, nil
}

func (f *fakeRepository) Close() error {
	f.closed = true
	return nil
}

// stubRepositories makes openRepository serve repos by path; unknown paths fail.
func stubRepositories(t *testing.T, repos map[string]*fakeRepository) {
	t.Helper()
	prev := openRepository
	openRepository = func(path string) (engine.Repository, error) {
		if repo, ok := repos[path]; ok {
			return repo, nil
		}
		return nil, errors.New("repository does not exist")
	}
	t.Cleanup(func() { openRepository = prev })
}

// useConfig writes cfg under a temp dir and points --config at it.
func useConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repomon.toml")
	if err := config.Save(cfg, path); err != nil {
		t.Fatalf("save config: %v", err)
	}
	useConfigPath(t, path)
	return path
}

func useConfigPath(t *testing.T, path string) {
	t.Helper()
	prev := flagConfig
	flagConfig = path
	t.Cleanup(func() { flagConfig = prev })
}

func resetExitCode(t *testing.T) {
	t.Helper()
	prev := exitCode
	exitCode = exitOK
	t.Cleanup(func() { exitCode = prev })
}

// newOutputCommand returns a command carrying the check/watch output flags.
func newOutputCommand(format string) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	addFormatFlag(cmd, format)
	addNoHeadersFlag(cmd)
	addWorktreeFlag(cmd)
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd, out, errOut
}

func monitoredConfig(basedir string) *config.Config {
	return &config.Config{
		Basedir: basedir,
		Repos: map[string]config.Repository{
			"repomon": {
				Remotes: []config.Remote{
					{Name: "origin", URL: "https://github.com/skaphos/repomon.git"},
					{Name: "gh", URL: "git@github.com:skaphos/repomon-mirror.git"},
				},
				Branches: []config.Branch{{Name: "master", Interval: "1m", Remotes: []string{"origin", "gh"}}},
			},
		},
	}
}

func cleanRepository() *fakeRepository {
	return &fakeRepository{
		refs: []model.BranchRef{
			{Name: "master", Scope: model.ScopeLocal, Target: "c2"},
			{Name: "origin/master", Scope: model.ScopeRemote, Target: "c1"},
			{Name: "gh/master", Scope: model.ScopeRemote, Target: "c2"},
		},
		ahead: map[model.CommitID]int{"c2": 1},
	}
}
