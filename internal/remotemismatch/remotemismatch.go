// SPDX-License-Identifier: MIT
// Package remotemismatch finds configured remote URLs that disagree with the
// remotes of the repository on disk, and reconciles one side with the other.
package remotemismatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/skaphos/repomon/internal/config"
	"github.com/skaphos/repomon/internal/gitx"
	"github.com/skaphos/repomon/internal/registry"
)

// ReconcileMode controls which side of a mismatch is rewritten.
type ReconcileMode string

const (
	ReconcileNone ReconcileMode = "none"
	// ReconcileConfig copies the repository's remote URL into the config.
	ReconcileConfig ReconcileMode = "config"
	// ReconcileGit points the repository's remote at the configured URL.
	ReconcileGit ReconcileMode = "git"
)

const (
	ActionSetConfigURL = "set config url to git remote"
	ActionSetGitURL    = "set git remote url to config url"
	ActionCreateRemote = "create git remote from config"
)

// Plan describes one remote to reconcile.
type Plan struct {
	Repository    string
	Path          string
	Remote        string
	ConfiguredURL string
	// RepositoryURL is empty when the repository lacks the remote.
	RepositoryURL string
	Action        string
}

// ParseReconcileMode validates a --mode value.
func ParseReconcileMode(raw string) (ReconcileMode, error) {
	mode := ReconcileMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case "", ReconcileNone:
		return ReconcileNone, nil
	case ReconcileConfig, ReconcileGit:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported reconcile mode %q (expected none, config or git)", raw)
	}
}

// BuildPlans compares every configured remote of each present repository with
// the remote of the same name on disk. URLs are compared after normalization,
// so an ssh and an https spelling of the same remote agree.
func BuildPlans(cfg *config.Config, reg *registry.Registry, mode ReconcileMode) []Plan {
	if cfg == nil || reg == nil || mode == ReconcileNone {
		return nil
	}
	var plans []Plan
	for _, entry := range reg.Entries {
		if entry.Status != registry.StatusPresent {
			continue
		}
		live := make(map[string]string, len(entry.Remotes))
		for _, remote := range entry.Remotes {
			live[remote.Name] = remote.URL
		}
		for _, remote := range cfg.Repos[entry.Repository].Remotes {
			liveURL, ok := live[remote.Name]
			if ok && gitx.SameRemote(remote.URL, liveURL) {
				continue
			}
			plan := Plan{
				Repository:    entry.Repository,
				Path:          entry.Path,
				Remote:        remote.Name,
				ConfiguredURL: remote.URL,
				RepositoryURL: liveURL,
			}
			switch {
			case mode == ReconcileConfig && liveURL != "":
				plan.Action = ActionSetConfigURL
			case mode == ReconcileGit && ok:
				plan.Action = ActionSetGitURL
			case mode == ReconcileGit:
				plan.Action = ActionCreateRemote
			default:
				continue
			}
			plans = append(plans, plan)
		}
	}
	return plans
}

// RemoteSetter rewrites a remote of the repository at path.
type RemoteSetter interface {
	SetRemoteURL(ctx context.Context, path, remote, url string) error
}

// GitSetter sets remotes through gitx.
type GitSetter struct{}

func (GitSetter) SetRemoteURL(ctx context.Context, path, remote, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	repo, err := gitx.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()
	return repo.SetRemoteURL(remote, url)
}

// ApplyPlans reconciles plans. In config mode it returns an updated copy of
// cfg; in git mode it rewrites repository remotes and returns cfg unchanged.
func ApplyPlans(ctx context.Context, plans []Plan, cfg *config.Config, mode ReconcileMode, setter RemoteSetter) (*config.Config, error) {
	if len(plans) == 0 {
		return cfg, nil
	}
	switch mode {
	case ReconcileConfig:
		out := cfg.Clone()
		for _, plan := range plans {
			repo, ok := out.Repos[plan.Repository]
			if !ok {
				continue
			}
			for i := range repo.Remotes {
				if repo.Remotes[i].Name == plan.Remote {
					repo.Remotes[i].URL = plan.RepositoryURL
				}
			}
		}
		return out, nil
	case ReconcileGit:
		if setter == nil {
			return cfg, errors.New("a remote setter is required for git reconciliation")
		}
		for _, plan := range plans {
			if err := setter.SetRemoteURL(ctx, plan.Path, plan.Remote, plan.ConfiguredURL); err != nil {
				return cfg, fmt.Errorf("set remote %q of %s to %q: %w", plan.Remote, plan.Path, plan.ConfiguredURL, err)
			}
		}
	}
	return cfg, nil
}
