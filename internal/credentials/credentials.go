// Package credentials provides pluggable strategies that supply go-git
// transport authentication for a remote URL.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// Kind is the credential type a transport asks for.
type Kind int

const (
	// KindNone is used by transports that never authenticate (file://, git://).
	KindNone Kind = iota
	// KindSSHKey is an SSH key, usually served by an agent.
	KindSSHKey
	// KindUserPass is HTTP basic authentication.
	KindUserPass
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSSHKey:
		return "ssh-key"
	case KindUserPass:
		return "userpass"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrUnavailable is returned when a provider cannot produce credentials of
	// the requested kind.
	ErrUnavailable = errors.New("credentials unavailable")
	// ErrRejected marks credentials that were produced but refused by the remote.
	ErrRejected = errors.New("credentials rejected")
)

const (
	EnvUsername = "REPOMON_GIT_USERNAME"
	EnvPassword = "REPOMON_GIT_PASSWORD"
)

// Provider supplies authentication for one remote URL. Implementations may
// block, for example while talking to an SSH agent.
type Provider interface {
	Credentials(ctx context.Context, url, usernameHint string, kind Kind) (transport.AuthMethod, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, url, usernameHint string, kind Kind) (transport.AuthMethod, error)

func (f ProviderFunc) Credentials(ctx context.Context, url, usernameHint string, kind Kind) (transport.AuthMethod, error) {
	return f(ctx, url, usernameHint, kind)
}

// KindForURL reports the credential kind a remote URL needs and the username
// embedded in it, if any.
func KindForURL(url string) (Kind, string, error) {
	endpoint, err := transport.NewEndpoint(url)
	if err != nil {
		return KindNone, "", err
	}
	switch endpoint.Protocol {
	case "ssh":
		return KindSSHKey, endpoint.User, nil
	case "http", "https":
		return KindUserPass, endpoint.User, nil
	default:
		return KindNone, endpoint.User, nil
	}
}

// SSHAgent authenticates SSH remotes with keys held by the running ssh-agent.
type SSHAgent struct {
	// DefaultUser is used when the URL carries no username. Defaults to "git".
	DefaultUser string
}

func (a SSHAgent) Credentials(ctx context.Context, url, usernameHint string, kind Kind) (transport.AuthMethod, error) {
	if kind != KindSSHKey {
		return nil, fmt.Errorf("ssh agent cannot serve %s: %w", kind, ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if os.Getenv("SSH_AUTH_SOCK") == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK is not set: %w", ErrUnavailable)
	}
	user := usernameHint
	if user == "" {
		user = a.DefaultUser
	}
	if user == "" {
		user = "git"
	}
	auth, err := gitssh.NewSSHAgentAuth(user)
	if err != nil {
		return nil, fmt.Errorf("ssh agent: %v: %w", err, ErrUnavailable)
	}
	return auth, nil
}

// Env reads HTTP basic credentials from REPOMON_GIT_USERNAME and REPOMON_GIT_PASSWORD.
type Env struct {
	lookup func(string) (string, bool)
}

func (e Env) Credentials(ctx context.Context, url, usernameHint string, kind Kind) (transport.AuthMethod, error) {
	if kind != KindUserPass {
		return nil, fmt.Errorf("environment cannot serve %s: %w", kind, ErrUnavailable)
	}
	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	password, ok := lookup(EnvPassword)
	if !ok || password == "" {
		return nil, fmt.Errorf("%s is not set: %w", EnvPassword, ErrUnavailable)
	}
	username, _ := lookup(EnvUsername)
	if strings.TrimSpace(username) == "" {
		username = usernameHint
	}
	return &githttp.BasicAuth{Username: username, Password: password}, nil
}

// Static always returns the same basic credentials for KindUserPass.
type Static struct {
	Username string
	Password string
}

func (s Static) Credentials(ctx context.Context, url, usernameHint string, kind Kind) (transport.AuthMethod, error) {
	if kind != KindUserPass || s.Password == "" {
		return nil, fmt.Errorf("static credentials cannot serve %s: %w", kind, ErrUnavailable)
	}
	user := s.Username
	if user == "" {
		user = usernameHint
	}
	return &githttp.BasicAuth{Username: user, Password: s.Password}, nil
}

// Chain tries each provider in order and returns the first credentials produced.
// KindNone short-circuits to no authentication.
type Chain []Provider

func (c Chain) Credentials(ctx context.Context, url, usernameHint string, kind Kind) (transport.AuthMethod, error) {
	if kind == KindNone {
		return nil, nil
	}
	var errs []error
	for _, provider := range c {
		auth, err := provider.Credentials(ctx, url, usernameHint, kind)
		if err == nil {
			return auth, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no credential provider for %s: %w", kind, ErrUnavailable)
	}
	return nil, fmt.Errorf("unable to authenticate %s: %w", url, errors.Join(errs...))
}

// Default returns the agent-then-environment chain used by the CLI.
func Default() Provider {
	return Chain{SSHAgent{}, Env{}}
}
