package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/skaphos/repomon/internal/model"
)

// RefSource enumerates branch references.
type RefSource interface {
	Branches(ctx context.Context, scope model.Scope) ([]model.BranchRef, error)
}

// RefError is a failed resolution. It matches ErrRefNotFound, ErrAmbiguousRef
// or ErrUnresolvableRef through errors.Is.
type RefError struct {
	Name       string
	Scope      model.Scope
	Candidates []model.CommitID
	kind       error
}

func (e *RefError) Error() string {
	switch e.kind {
	case ErrAmbiguousRef:
		ids := make([]string, len(e.Candidates))
		for i, id := range e.Candidates {
			ids[i] = shortID(id)
		}
		return fmt.Sprintf("ambiguous %s branch %q matches %s", e.Scope, e.Name, strings.Join(ids, ", "))
	case ErrUnresolvableRef:
		return fmt.Sprintf("%s branch %q does not point at a commit", e.Scope, e.Name)
	default:
		return fmt.Sprintf("%s branch %q not found", e.Scope, e.Name)
	}
}

func (e *RefError) Unwrap() error {
	return e.kind
}

func (e *RefError) ErrorClass() string {
	switch e.kind {
	case ErrAmbiguousRef:
		return "ambiguous_ref"
	case ErrUnresolvableRef:
		return "unresolvable_ref"
	default:
		return "ref_not_found"
	}
}

// Resolve returns the single commit the branch called name points at within
// scope. Only exact name matches count. Matches that disagree on the commit
// are an error rather than a choice.
func Resolve(ctx context.Context, src RefSource, name string, scope model.Scope) (model.ResolvedRef, error) {
	branches, err := src.Branches(ctx, scope)
	if err != nil {
		return model.ResolvedRef{}, err
	}

	var (
		matched  int
		resolved []model.BranchRef
	)
	for _, branch := range branches {
		if branch.Name != name || !scope.Includes(branch.Scope) {
			continue
		}
		matched++
		if branch.Target == "" {
			continue
		}
		duplicate := false
		for _, seen := range resolved {
			if seen.Target == branch.Target {
				duplicate = true
				break
			}
		}
		if !duplicate {
			resolved = append(resolved, branch)
		}
	}

	switch {
	case len(resolved) == 1:
		return model.ResolvedRef{CommitID: resolved[0].Target, Branch: name, Scope: resolved[0].Scope}, nil
	case len(resolved) > 1:
		candidates := make([]model.CommitID, len(resolved))
		for i, branch := range resolved {
			candidates[i] = branch.Target
		}
		return model.ResolvedRef{}, &RefError{Name: name, Scope: scope, Candidates: candidates, kind: ErrAmbiguousRef}
	case matched == 1:
		return model.ResolvedRef{}, &RefError{Name: name, Scope: scope, kind: ErrUnresolvableRef}
	default:
		return model.ResolvedRef{}, &RefError{Name: name, Scope: scope, kind: ErrRefNotFound}
	}
}

func shortID(id model.CommitID) string {
	if len(id) > 12 {
		return string(id[:12])
	}
	return string(id)
}
