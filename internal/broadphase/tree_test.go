package broadphase_test

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/rigidsim/internal/broadphase"
	"github.com/san-kum/rigidsim/internal/dynamo"
	"github.com/san-kum/rigidsim/internal/geom"
)

func unitBox(x, y, z float64) geom.AABB {
	return geom.FromCenterHalf(mgl64.Vec3{x, y, z}, mgl64.Vec3{0.5, 0.5, 0.5})
}

func collect(t *broadphase.Tree, box geom.AABB) []int {
	var hits []int
	t.Query(box, func(id int) bool {
		hits = append(hits, t.UserData(id))
		return true
	})
	return hits
}

var _ = Describe("Tree", func() {
	var tree *broadphase.Tree

	BeforeEach(func() {
		tree = broadphase.NewTree(0.1, 2)
	})

	It("starts empty", func() {
		Expect(tree.Len()).To(Equal(0))
		Expect(tree.Height()).To(Equal(-1))
		Expect(tree.Validate()).To(Succeed())
	})

	It("fattens leaves by the margin", func() {
		id, err := tree.Insert(unitBox(0, 0, 0), 7)
		Expect(err).NotTo(HaveOccurred())
		fat := tree.FatAABB(id)
		Expect(fat.Min[0]).To(BeNumerically("~", -0.6, 1e-12))
		Expect(fat.Max[1]).To(BeNumerically("~", 0.6, 1e-12))
		Expect(tree.UserData(id)).To(Equal(7))
	})

	It("rejects degenerate boxes", func() {
		bad := []geom.AABB{
			geom.NewAABB(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 1}),
			geom.NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, nan(), 1}),
		}
		for _, b := range bad {
			_, err := tree.Insert(b, 0)
			Expect(err).To(MatchError(dynamo.ErrDegenerateAABB))
		}
		Expect(tree.Len()).To(Equal(0))

		flat := broadphase.NewTree(0, 1)
		_, err := flat.Insert(geom.NewAABB(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 1}), 0)
		Expect(err).To(MatchError(dynamo.ErrDegenerateAABB))
	})

	It("restores the empty tree after insert and remove", func() {
		ids := make([]int, 0, 32)
		for i := 0; i < 32; i++ {
			id, err := tree.Insert(unitBox(float64(i)*1.5, 0, 0), i)
			Expect(err).NotTo(HaveOccurred())
			ids = append(ids, id)
		}
		Expect(tree.Validate()).To(Succeed())
		for _, id := range ids {
			tree.Remove(id)
			Expect(tree.Validate()).To(Succeed())
		}
		Expect(tree.Len()).To(Equal(0))
		Expect(tree.Height()).To(Equal(-1))
		Expect(collect(tree, unitBox(0, 0, 0))).To(BeEmpty())
	})

	It("keeps the tree shallow for sorted inserts", func() {
		for i := 0; i < 128; i++ {
			_, err := tree.Insert(unitBox(float64(i)*2, 0, 0), i)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(tree.Validate()).To(Succeed())
		Expect(tree.Height()).To(BeNumerically("<", 25))
	})

	It("answers the same overlaps as brute force", func() {
		rng := rand.New(rand.NewSource(42))
		boxes := make([]geom.AABB, 200)
		for i := range boxes {
			boxes[i] = unitBox(rng.Float64()*20, rng.Float64()*20, rng.Float64()*20)
			_, err := tree.Insert(boxes[i], i)
			Expect(err).NotTo(HaveOccurred())
		}
		query := geom.NewAABB(mgl64.Vec3{5, 5, 5}, mgl64.Vec3{10, 10, 10})
		var want []int
		for i, b := range boxes {
			if b.Inflate(0.1).Overlaps(query) {
				want = append(want, i)
			}
		}
		Expect(collect(tree, query)).To(ConsistOf(want))
	})

	It("stops a query when the callback returns false", func() {
		for i := 0; i < 10; i++ {
			_, _ = tree.Insert(unitBox(0, 0, 0), i)
		}
		n := 0
		tree.Query(unitBox(0, 0, 0), func(int) bool {
			n++
			return n < 3
		})
		Expect(n).To(Equal(3))
	})

	Describe("Move", func() {
		It("does not touch the tree while the fat box still contains the tight box", func() {
			id, _ := tree.Insert(unitBox(0, 0, 0), 0)
			before := tree.FatAABB(id)
			moved, err := tree.Move(id, unitBox(0.05, 0, 0), mgl64.Vec3{0.05, 0, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(moved).To(BeFalse())
			Expect(tree.FatAABB(id)).To(Equal(before))
		})

		It("reinserts and extends along the displacement", func() {
			id, _ := tree.Insert(unitBox(0, 0, 0), 0)
			moved, err := tree.Move(id, unitBox(1, 0, 0), mgl64.Vec3{1, 0, 0})
			Expect(err).NotTo(HaveOccurred())
			Expect(moved).To(BeTrue())
			fat := tree.FatAABB(id)
			Expect(fat.Max[0]).To(BeNumerically("~", 1.5+0.1+2, 1e-12))
			Expect(fat.Min[0]).To(BeNumerically("~", 0.5-0.1, 1e-12))
			Expect(fat.Contains(unitBox(1, 0, 0))).To(BeTrue())
			Expect(tree.Validate()).To(Succeed())
		})
	})

	It("casts rays against leaves in order of clipping", func() {
		for i := 0; i < 5; i++ {
			_, _ = tree.Insert(unitBox(float64(i)*3, 0, 0), i)
		}
		ray := geom.NewRay(mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{20, 0, 0})
		best, bestFraction := -1, 2.0
		tree.RayCast(ray, func(id int, r geom.Ray) float64 {
			f, ok := geom.FromCenterHalf(mgl64.Vec3{float64(tree.UserData(id)) * 3, 0, 0}, mgl64.Vec3{0.5, 0.5, 0.5}).
				RayFraction(r.From, r.To, r.MaxFraction)
			if !ok {
				return -1
			}
			if f < bestFraction {
				best, bestFraction = tree.UserData(id), f
			}
			return f
		})
		Expect(best).To(Equal(0))
		Expect(bestFraction).To(BeNumerically("~", 4.5/25, 1e-9))
	})
})
