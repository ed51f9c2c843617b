package broadphase_test

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/geom"
)

func nan() float64 { return math.NaN() }

var _ = Describe("BroadPhase", func() {
	var bp *broadphase.BroadPhase

	BeforeEach(func() {
		bp = broadphase.New(broadphase.DefaultMargin, broadphase.DefaultDisplacementMultiplier)
	})

	It("reports overlapping pairs sorted with A < B", func() {
		ids := map[int]int{}
		for _, data := range []int{5, 3, 9} {
			id, err := bp.Insert(data, unitBox(0, 0, 0))
			Expect(err).NotTo(HaveOccurred())
			ids[data] = id
		}
		_, err := bp.Insert(1, unitBox(50, 0, 0))
		Expect(err).NotTo(HaveOccurred())

		Expect(bp.QueryOverlaps()).To(Equal([]broadphase.Pair{{A: 3, B: 5}, {A: 3, B: 9}, {A: 5, B: 9}}))
	})

	It("is idempotent without intervening updates", func() {
		for i := 0; i < 20; i++ {
			_, err := bp.Insert(i, unitBox(float64(i)*0.8, 0, 0))
			Expect(err).NotTo(HaveOccurred())
		}
		first := append([]broadphase.Pair(nil), bp.QueryOverlaps()...)
		Expect(first).NotTo(BeEmpty())
		Expect(bp.QueryOverlaps()).To(Equal(first))
		Expect(bp.QueryOverlaps()).To(Equal(first))
	})

	It("keeps pairs while fat boxes overlap and drops them after separation", func() {
		a, _ := bp.Insert(0, unitBox(0, 0, 0))
		_, _ = bp.Insert(1, unitBox(0.9, 0, 0))
		Expect(bp.QueryOverlaps()).To(HaveLen(1))

		moved, err := bp.Update(a, unitBox(-10, 0, 0), mgl64.Vec3{-10, 0, 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(moved).To(BeTrue())
		Expect(bp.QueryOverlaps()).To(BeEmpty())
	})

	It("finds new pairs for moved proxies only after the move", func() {
		a, _ := bp.Insert(0, unitBox(0, 0, 0))
		_, _ = bp.Insert(1, unitBox(5, 0, 0))
		Expect(bp.QueryOverlaps()).To(BeEmpty())

		_, err := bp.Update(a, unitBox(4.5, 0, 0), mgl64.Vec3{4.5, 0, 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(bp.QueryOverlaps()).To(Equal([]broadphase.Pair{{A: 0, B: 1}}))
	})

	It("does not mutate on an unchanged box", func() {
		a, _ := bp.Insert(0, unitBox(0, 0, 0))
		_ = bp.QueryOverlaps()
		before := bp.FatAABB(a)
		moved, err := bp.Update(a, unitBox(0, 0, 0), mgl64.Vec3{})
		Expect(err).NotTo(HaveOccurred())
		Expect(moved).To(BeFalse())
		Expect(bp.FatAABB(a)).To(Equal(before))
	})

	It("drops pairs of removed proxies", func() {
		a, _ := bp.Insert(0, unitBox(0, 0, 0))
		_, _ = bp.Insert(1, unitBox(0.5, 0, 0))
		Expect(bp.QueryOverlaps()).To(HaveLen(1))
		bp.Remove(a)
		Expect(bp.QueryOverlaps()).To(BeEmpty())
		Expect(bp.Len()).To(Equal(1))
		Expect(bp.Tree().Validate()).To(Succeed())
	})

	It("indexes pairs per proxy", func() {
		a, _ := bp.Insert(0, unitBox(0, 0, 0))
		b, _ := bp.Insert(1, unitBox(0.5, 0, 0))
		c, _ := bp.Insert(2, unitBox(1.0, 0, 0))
		far, _ := bp.Insert(3, unitBox(40, 0, 0))
		Expect(bp.QueryOverlaps()).To(HaveLen(3))

		Expect(bp.PairsOf(a)).To(Equal([]broadphase.Pair{{A: 0, B: 1}, {A: 0, B: 2}}))
		Expect(bp.PairsOf(far)).To(BeEmpty())

		bp.Remove(b)
		Expect(bp.PairsOf(a)).To(Equal([]broadphase.Pair{{A: 0, B: 2}}))
		Expect(bp.PairsOf(c)).To(Equal([]broadphase.Pair{{A: 0, B: 2}}))
		Expect(bp.QueryOverlaps()).To(Equal([]broadphase.Pair{{A: 0, B: 2}}))

		_, err := bp.Update(c, unitBox(-20, 0, 0), mgl64.Vec3{-21, 0, 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(bp.QueryOverlaps()).To(BeEmpty())
		Expect(bp.PairsOf(a)).To(BeEmpty())
	})

	It("accepts point and flat boxes once the margin gives them volume", func() {
		point := geom.NewAABB(mgl64.Vec3{2, 2, 2}, mgl64.Vec3{2, 2, 2})
		flat := geom.NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 1})
		for _, box := range []geom.AABB{point, flat} {
			_, err := bp.Insert(0, box)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(bp.Len()).To(Equal(2))
		Expect(bp.Tree().Validate()).To(Succeed())
	})
})
