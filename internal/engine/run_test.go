package engine_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/repomon/internal/config"
	"github.com/skaphos/repomon/internal/engine"
	"github.com/skaphos/repomon/internal/model"
)

var _ = Describe("RunOnce", func() {
	var (
		repo    *fakeRepo
		cfg     *config.Config
		checker *engine.Checker
		opener  engine.Opener
	)

	BeforeEach(func() {
		repo = newFakeRepo(
			local("master", commitA),
			tracking("origin/master", commitB),
			tracking("gh/master", commitA),
		)
		repo.divergence[pair{commitA, commitB}] = model.Divergence{Ahead: 2}
		cfg = monitorConfig(
			config.Branch{Name: "master", Interval: "1m", Remotes: []string{"origin", "gh"}},
			config.Branch{Name: "scratch", Interval: "1m"},
		)
		cfg.Repos["attic"] = config.Repository{
			Remotes:  []config.Remote{{Name: "origin", URL: "https://example.com/attic.git"}},
			Branches: []config.Branch{{Name: "main", Interval: "1h", Remotes: []string{"origin"}}},
		}
		checker = engine.NewChecker(engine.CheckerOptions{})
		opener = openerFor(map[string]*fakeRepo{"/src/repomon": repo})
	})

	It("checks every branch with remotes once", func() {
		report, err := engine.RunOnce(context.Background(), cfg, engine.RunOptions{Checker: checker, Opener: opener})
		Expect(err).NotTo(HaveOccurred())

		Expect(report.Messages).To(HaveLen(2))
		Expect(report.Messages[0].Repository).To(Equal("attic"))
		Expect(report.Messages[0].ErrorClasses).To(Equal(map[string]string{"origin": "repository"}))
		Expect(report.Messages[1].Repository).To(Equal("repomon"))
		Expect(report.Messages[1].Remotes).To(Equal(map[string]string{
			"origin": "Your branch is ahead of 'origin/master' by 2 commit(s)",
			"gh":     "Your branch is up to date with 'gh/master'",
		}))

		Expect(report.RepositoryErrors).To(HaveLen(1))
		Expect(report.RepositoryErrors[0].Repository).To(Equal("attic"))
		Expect(errors.Is(report.RepositoryErrors[0], engine.ErrRepositoryAccess)).To(BeTrue())
		Expect(report.Failed()).To(BeTrue())
		Expect(repo.closed.Load()).To(BeTrue())
	})

	It("restricts the pass to the named repositories", func() {
		report, err := engine.RunOnce(context.Background(), cfg, engine.RunOptions{
			Checker: checker, Opener: opener, Repos: []string{"repomon"}, Concurrency: 1,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Messages).To(HaveLen(1))
		Expect(report.RepositoryErrors).To(BeEmpty())
		Expect(report.Failed()).To(BeFalse())
	})

	It("returns the context error when cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := engine.RunOnce(ctx, cfg, engine.RunOptions{Checker: checker, Opener: opener})
		Expect(err).To(MatchError(context.Canceled))
	})

	It("requires its collaborators", func() {
		_, err := engine.RunOnce(context.Background(), cfg, engine.RunOptions{})
		Expect(err).To(HaveOccurred())
	})
})
