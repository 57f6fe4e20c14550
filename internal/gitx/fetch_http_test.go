package gitx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-git/go-git/v5/plumbing/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/repomon/internal/credentials"
	"github.com/skaphos/repomon/internal/gitx"
)

type countingProvider struct {
	next  credentials.Provider
	asked int
}

func (p *countingProvider) Credentials(ctx context.Context, url, user string, kind credentials.Kind) (transport.AuthMethod, error) {
	p.asked++
	return p.next.Credentials(ctx, url, user, kind)
}

// gitServer answers every request with 404, or with 401 until basic
// credentials arrive when protected is set.
type gitServer struct {
	*httptest.Server
	mu        sync.Mutex
	hits      int
	usernames []string
}

func newGitServer(protected bool) *gitServer {
	s := &gitServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		s.mu.Lock()
		s.hits++
		if ok {
			s.usernames = append(s.usernames, user)
		}
		s.mu.Unlock()
		if protected && !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.NotFound(w, r)
	}))
	DeferCleanup(s.Close)
	return s
}

func (s *gitServer) stats() (int, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, append([]string(nil), s.usernames...)
}

var _ = Describe("Fetch over http", func() {
	var (
		ctx  context.Context
		repo *gitx.Repo
	)

	openWithRemote := func(url string) {
		fixture := newFixtureRepo()
		fixture.commit("one")
		fixture.addRemote("origin", url)
		var err error
		repo, err = gitx.Open(fixture.dir)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() { _ = repo.Close() })
	}

	BeforeEach(func() {
		ctx = context.Background()
		GinkgoT().Setenv(credentials.EnvPassword, "")
		GinkgoT().Setenv("SSH_AUTH_SOCK", "")
	})

	It("contacts a public remote without asking for credentials", func() {
		server := newGitServer(false)
		openWithRemote(server.URL + "/public.git")
		provider := &countingProvider{next: credentials.Default()}

		_, err := repo.Fetch(ctx, "origin", provider, nil)
		Expect(errors.Is(err, transport.ErrRepositoryNotFound)).To(BeTrue())
		Expect(errors.Is(err, credentials.ErrUnavailable)).To(BeFalse())
		Expect(provider.asked).To(BeZero())
		hits, _ := server.stats()
		Expect(hits).To(BeNumerically(">", 0))
	})

	It("asks for credentials once the server requires them and retries", func() {
		server := newGitServer(true)
		openWithRemote(server.URL + "/private.git")
		provider := &countingProvider{next: credentials.Static{Username: "ci", Password: "secret"}}

		_, err := repo.Fetch(ctx, "origin", provider, nil)
		Expect(errors.Is(err, transport.ErrRepositoryNotFound)).To(BeTrue())
		Expect(provider.asked).To(Equal(1))
		_, usernames := server.stats()
		Expect(usernames).To(ContainElement("ci"))
	})

	It("reports unavailable credentials when the server requires them", func() {
		server := newGitServer(true)
		openWithRemote(server.URL + "/private.git")
		provider := &countingProvider{next: credentials.Default()}

		_, err := repo.Fetch(ctx, "origin", provider, nil)
		Expect(errors.Is(err, credentials.ErrUnavailable)).To(BeTrue())
		Expect(provider.asked).To(Equal(1))
		hits, _ := server.stats()
		Expect(hits).To(BeNumerically(">", 0))
	})
})
