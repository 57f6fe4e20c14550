// Package model defines the value types that flow through a repomon check cycle.
package model

import (
	"sort"
	"strings"
	"time"
)

// Scope restricts which branch references a lookup considers.
type Scope int

const (
	// ScopeLocal matches refs/heads/* only.
	ScopeLocal Scope = iota
	// ScopeRemote matches remote-tracking refs (refs/remotes/<remote>/*) only.
	ScopeRemote
	// ScopeAny matches both local and remote-tracking branches.
	ScopeAny
)

func (s Scope) String() string {
	switch s {
	case ScopeLocal:
		return "local"
	case ScopeRemote:
		return "remote"
	case ScopeAny:
		return "any"
	default:
		return "unknown"
	}
}

// Includes reports whether a branch in scope other is visible to a lookup in s.
func (s Scope) Includes(other Scope) bool {
	return s == ScopeAny || s == other
}

// CommitID is a hex-encoded commit object id.
type CommitID string

// BranchRef is one branch reference as enumerated from a repository.
type BranchRef struct {
	// Name is the short branch name. Remote-tracking branches are named "<remote>/<branch>".
	Name string
	// Scope is ScopeLocal or ScopeRemote.
	Scope Scope
	// Target is the commit the branch points at. Empty when the ref cannot be resolved.
	Target CommitID
}

// ResolvedRef is the result of resolving a branch name to a single commit.
type ResolvedRef struct {
	CommitID CommitID
	Branch   string
	Scope    Scope
}

// StatusFlag is one working-tree status category.
type StatusFlag uint16

const (
	FlagIndexNew StatusFlag = 1 << iota
	FlagIndexModified
	FlagIndexDeleted
	FlagIndexTypeChange
	FlagIndexRenamed
	FlagWorktreeNew
	FlagWorktreeModified
	FlagWorktreeDeleted
	FlagWorktreeTypeChange
	FlagWorktreeRenamed
	FlagIgnored
	FlagConflicted
)

// statusFlagNames is ordered; rendering always follows this order.
var statusFlagNames = []struct {
	flag StatusFlag
	name string
}{
	{FlagIndexNew, "idx-new"},
	{FlagIndexModified, "idx-modified"},
	{FlagIndexDeleted, "idx-deleted"},
	{FlagIndexTypeChange, "idx-typechange"},
	{FlagIndexRenamed, "idx-renamed"},
	{FlagWorktreeNew, "wt-new"},
	{FlagWorktreeModified, "wt-modified"},
	{FlagWorktreeDeleted, "wt-deleted"},
	{FlagWorktreeTypeChange, "wt-typechange"},
	{FlagWorktreeRenamed, "wt-renamed"},
	{FlagIgnored, "ignored"},
	{FlagConflicted, "conflicted"},
}

// StatusFlags is a set of StatusFlag values.
type StatusFlags uint16

// Has reports whether f contains flag.
func (f StatusFlags) Has(flag StatusFlag) bool {
	return f&StatusFlags(flag) != 0
}

// With returns f with flag added.
func (f StatusFlags) With(flag StatusFlag) StatusFlags {
	return f | StatusFlags(flag)
}

// Names returns the vocabulary names of every flag set in f, in canonical order.
func (f StatusFlags) Names() []string {
	names := make([]string, 0, len(statusFlagNames))
	for _, entry := range statusFlagNames {
		if f.Has(entry.flag) {
			names = append(names, entry.name)
		}
	}
	return names
}

// String renders the flags comma-joined in canonical order.
func (f StatusFlags) String() string {
	return strings.Join(f.Names(), ",")
}

// PathStatus is the raw status of one changed path.
type PathStatus struct {
	Path  string
	Flags StatusFlags
}

// Divergence is the ahead/behind relationship between a local and a remote-tracking commit.
type Divergence struct {
	Ahead  int `json:"ahead" yaml:"ahead"`
	Behind int `json:"behind" yaml:"behind"`
}

// DivergenceState enumerates the relationship described by a Divergence.
type DivergenceState string

const (
	DivergenceEqual    DivergenceState = "equal"
	DivergenceAhead    DivergenceState = "ahead"
	DivergenceBehind   DivergenceState = "behind"
	DivergenceDiverged DivergenceState = "diverged"
)

// State classifies d.
func (d Divergence) State() DivergenceState {
	switch {
	case d.Ahead > 0 && d.Behind > 0:
		return DivergenceDiverged
	case d.Ahead > 0:
		return DivergenceAhead
	case d.Behind > 0:
		return DivergenceBehind
	default:
		return DivergenceEqual
	}
}

// DivergenceResult bundles the commit relationship with the working-tree flags
// observed in the same cycle.
type DivergenceResult struct {
	Divergence
	// WorktreeFlags is the union of flags over every changed path.
	WorktreeFlags StatusFlags
}

// FetchStats summarizes what a pruning fetch changed under refs/remotes/<remote>/.
type FetchStats struct {
	Remote   string `json:"remote" yaml:"remote"`
	UpToDate bool   `json:"up_to_date" yaml:"up_to_date"`
	Created  int    `json:"created" yaml:"created"`
	Updated  int    `json:"updated" yaml:"updated"`
	Pruned   int    `json:"pruned" yaml:"pruned"`
}

// WorktreeEntry is one rendered working-tree status line.
type WorktreeEntry struct {
	Path   string `json:"path" yaml:"path"`
	Status string `json:"status" yaml:"status"`
}

// StatusMessage is the unit of output of a check cycle.
type StatusMessage struct {
	// ID is unique per message.
	ID string `json:"id" yaml:"id"`
	// Repository is the configured repository name.
	Repository string `json:"repository" yaml:"repository"`
	// Branch is the local branch that was checked.
	Branch string `json:"branch" yaml:"branch"`
	// Remotes maps remote name to status text. Failed remotes carry error text.
	Remotes map[string]string `json:"remotes" yaml:"remotes"`
	// ErrorClasses maps remote name to a coarse error class for failed remotes.
	ErrorClasses map[string]string `json:"error_classes,omitempty" yaml:"error_classes,omitempty"`
	// Divergence holds the ahead/behind counts of every remote compared successfully.
	Divergence map[string]Divergence `json:"divergence,omitempty" yaml:"divergence,omitempty"`
	// Worktree lists changed paths with their comma-joined flags.
	Worktree []WorktreeEntry `json:"worktree,omitempty" yaml:"worktree,omitempty"`
	// WorktreeFlags is the union of the flags in Worktree, in vocabulary order.
	WorktreeFlags []string `json:"worktree_flags,omitempty" yaml:"worktree_flags,omitempty"`
	// GeneratedAt is when the message was assembled.
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
}

// RemoteNames returns the remote keys of m sorted by name.
func (m StatusMessage) RemoteNames() []string {
	names := make([]string, 0, len(m.Remotes))
	for name := range m.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Failed reports whether any remote entry of m is an error.
func (m StatusMessage) Failed() bool {
	return len(m.ErrorClasses) > 0
}

// TaskState is the scheduler state of one (repository, branch) task.
type TaskState string

const (
	TaskIdle     TaskState = "idle"
	TaskChecking TaskState = "checking"
	TaskDisabled TaskState = "disabled"
	TaskFailed   TaskState = "failed"
)
