package engine_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/repomon/internal/engine"
	"github.com/skaphos/repomon/internal/model"
)

type graphFunc func(local, remote model.CommitID) (model.Divergence, error)

func (f graphFunc) AheadBehind(_ context.Context, local, remote model.CommitID) (model.Divergence, error) {
	return f(local, remote)
}

var _ = Describe("Divergence", func() {
	DescribeTable("StatusText",
		func(d model.Divergence, expected string) {
			Expect(engine.StatusText("origin", "master", d)).To(Equal(expected))
		},
		Entry("up to date", model.Divergence{}, "Your branch is up to date with 'origin/master'"),
		Entry("ahead", model.Divergence{Ahead: 2}, "Your branch is ahead of 'origin/master' by 2 commit(s)"),
		Entry("behind", model.Divergence{Behind: 3}, "Your branch is behind 'origin/master' by 3 commit(s)"),
		Entry("diverged", model.Divergence{Ahead: 1, Behind: 4},
			"Your branch and 'origin/master' have diverged, and have 1 and 4 different commits each, respectively"),
	)

	It("renders comparison failures", func() {
		text := engine.ErrorStatusText("gh", "feature/testing", errors.New("boom"))
		Expect(text).To(Equal("Unable to compare with 'gh/feature/testing': boom"))
	})

	It("is zero for identical commits", func() {
		repo := newFakeRepo()
		d, err := engine.AheadBehind(context.Background(), repo, commitA, commitA)
		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(Equal(model.Divergence{}))
	})

	It("swaps counts when the arguments are swapped", func() {
		repo := newFakeRepo()
		repo.divergence[pair{commitA, commitB}] = model.Divergence{Ahead: 2, Behind: 5}
		repo.divergence[pair{commitB, commitA}] = model.Divergence{Ahead: 5, Behind: 2}

		forward, err := engine.AheadBehind(context.Background(), repo, commitA, commitB)
		Expect(err).NotTo(HaveOccurred())
		backward, err := engine.AheadBehind(context.Background(), repo, commitB, commitA)
		Expect(err).NotTo(HaveOccurred())
		Expect(backward).To(Equal(model.Divergence{Ahead: forward.Behind, Behind: forward.Ahead}))
	})

	It("rejects negative counts", func() {
		graph := graphFunc(func(_, _ model.CommitID) (model.Divergence, error) {
			return model.Divergence{Ahead: -1}, nil
		})
		_, err := engine.AheadBehind(context.Background(), graph, commitA, commitB)
		Expect(err).To(MatchError(ContainSubstring("negative ahead/behind")))
	})

	It("combines divergence with the working-tree union", func() {
		graph := graphFunc(func(_, _ model.CommitID) (model.Divergence, error) {
			return model.Divergence{Behind: 1}, nil
		})
		result, err := engine.Diverge(context.Background(), graph, commitA, commitB, []model.PathStatus{
			{Path: "a.go", Flags: model.StatusFlags(model.FlagWorktreeModified)},
			{Path: "b.go", Flags: model.StatusFlags(model.FlagIndexNew)},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Behind).To(Equal(1))
		Expect(result.WorktreeFlags.Has(model.FlagWorktreeModified)).To(BeTrue())
		Expect(result.WorktreeFlags.Has(model.FlagIndexNew)).To(BeTrue())
	})

	It("omits paths without flags when classifying the worktree", func() {
		flags := model.StatusFlags(0).With(model.FlagIndexModified).With(model.FlagWorktreeModified)
		union, entries := engine.ClassifyWorktree([]model.PathStatus{
			{Path: "clean.txt"},
			{Path: "main.go", Flags: flags},
		})
		Expect(union).To(Equal(flags))
		Expect(entries).To(Equal([]model.WorktreeEntry{{Path: "main.go", Status: "idx-modified,wt-modified"}}))
	})
})
