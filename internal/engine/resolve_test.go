package engine_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/repomon/internal/engine"
	"github.com/skaphos/repomon/internal/model"
)

var _ = Describe("Resolve", func() {
	var (
		ctx  context.Context
		repo *fakeRepo
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newFakeRepo(
			local("master", commitA),
			local("feature/testing", commitB),
			tracking("origin/master", commitB),
			tracking("gh/master", commitA),
			local("dup", commitA),
			local("dup", commitC),
			local("same", commitA),
			tracking("same", commitA),
			local("dangling", ""),
		)
	})

	It("resolves an exact local match", func() {
		ref, err := engine.Resolve(ctx, repo, "master", model.ScopeLocal)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref).To(Equal(model.ResolvedRef{CommitID: commitA, Branch: "master", Scope: model.ScopeLocal}))
	})

	It("resolves remote-tracking names within remote scope", func() {
		ref, err := engine.Resolve(ctx, repo, "origin/master", model.ScopeRemote)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref.CommitID).To(Equal(commitB))
		Expect(ref.Scope).To(Equal(model.ScopeRemote))
	})

	It("ignores branches outside the requested scope", func() {
		_, err := engine.Resolve(ctx, repo, "origin/master", model.ScopeLocal)
		Expect(errors.Is(err, engine.ErrRefNotFound)).To(BeTrue())
	})

	It("does not match on prefixes", func() {
		_, err := engine.Resolve(ctx, repo, "mast", model.ScopeAny)
		Expect(errors.Is(err, engine.ErrRefNotFound)).To(BeTrue())

		var refErr *engine.RefError
		Expect(errors.As(err, &refErr)).To(BeTrue())
		Expect(refErr.ErrorClass()).To(Equal("ref_not_found"))
		Expect(refErr.Error()).To(Equal(`any branch "mast" not found`))
	})

	It("reports matches pointing at different commits as ambiguous", func() {
		_, err := engine.Resolve(ctx, repo, "dup", model.ScopeLocal)
		Expect(errors.Is(err, engine.ErrAmbiguousRef)).To(BeTrue())

		var refErr *engine.RefError
		Expect(errors.As(err, &refErr)).To(BeTrue())
		Expect(refErr.Candidates).To(ConsistOf(commitA, commitC))
		Expect(refErr.Error()).To(ContainSubstring("aaaaaaaaaaaa"))
		Expect(engine.DefaultClassify(err)).To(Equal("ambiguous_ref"))
	})

	It("accepts several matches that agree on the commit", func() {
		ref, err := engine.Resolve(ctx, repo, "same", model.ScopeAny)
		Expect(err).NotTo(HaveOccurred())
		Expect(ref.CommitID).To(Equal(commitA))
	})

	It("reports a single match without a target as unresolvable", func() {
		_, err := engine.Resolve(ctx, repo, "dangling", model.ScopeLocal)
		Expect(errors.Is(err, engine.ErrUnresolvableRef)).To(BeTrue())
		Expect(engine.DefaultClassify(err)).To(Equal("unresolvable_ref"))
	})

	It("propagates enumeration failures", func() {
		repo.branchErr = errors.New("packed-refs corrupt")
		_, err := engine.Resolve(ctx, repo, "master", model.ScopeLocal)
		Expect(err).To(MatchError("packed-refs corrupt"))
	})
})
