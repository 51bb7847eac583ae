package memindex_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/weave/pkg/memindex"
)

var _ = Describe("Cosine", func() {
	It("is symmetric", func() {
		a := []float32{1, 2, 3}
		b := []float32{-4, 0, 2.5}

		ab, err := memindex.Cosine(a, b)
		Expect(err).NotTo(HaveOccurred())
		ba, err := memindex.Cosine(b, a)
		Expect(err).NotTo(HaveOccurred())
		Expect(ab).To(Equal(ba))
	})

	It("scores any nonzero vector against itself as 1", func() {
		a := []float32{0.3, -1.2, 8}
		sim, err := memindex.Cosine(a, a)
		Expect(err).NotTo(HaveOccurred())
		Expect(sim).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("returns 0 when either norm is zero", func() {
		zero := []float32{0, 0, 0}
		sim, err := memindex.Cosine(zero, []float32{1, 2, 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(sim).To(BeZero())
	})

	It("fails on a dimension mismatch", func() {
		_, err := memindex.Cosine([]float32{1, 2}, []float32{1, 2, 3})
		Expect(err).To(MatchError(memindex.ErrDimensionMismatch))
	})

	It("scores orthogonal vectors as 0", func() {
		sim, err := memindex.Cosine([]float32{1, 0}, []float32{0, 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(sim).To(BeNumerically("~", 0.0, 1e-9))
	})
})
