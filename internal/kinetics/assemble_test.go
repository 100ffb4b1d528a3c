package kinetics_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/reactsim/internal/dynamo"
	"github.com/san-kum/reactsim/internal/kinetics"
)

func growth() kinetics.Definition {
	return kinetics.Definition{
		Name:      "growth",
		Species:   []string{"X", "S"},
		Reactions: []string{"growth"},
		Params:    map[string]float64{"mu": 0.1},
		Rates:     map[string]string{"growth": "mu*X"},
		MassBalances: map[string]map[string]float64{
			"X": {"growth": 1},
			"S": {"growth": -1},
		},
		InitialState: []float64{1, 10},
	}
}

var _ = Describe("Assemble", func() {
	Context("with the single-reaction growth network", func() {
		var sys *kinetics.System

		BeforeEach(func() {
			var err error
			sys, err = kinetics.Assemble(growth())
			Expect(err).NotTo(HaveOccurred())
		})

		It("derives S·v(y)", func() {
			dy, err := sys.Derive(dynamo.State{1, 10}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(dy).To(HaveLen(2))
			Expect(dy[0]).To(BeNumerically("~", 0.1, 1e-12))
			Expect(dy[1]).To(BeNumerically("~", -0.1, 1e-12))
		})

		It("does not modify the state it reads", func() {
			y := dynamo.State{1, 10}
			_, err := sys.Derive(y, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(y).To(Equal(dynamo.State{1, 10}))
		})

		It("reports its dimensions and substituted formulas", func() {
			Expect(sys.StateDim()).To(Equal(2))
			Expect(sys.Species()).To(Equal([]string{"X", "S"}))
			Expect(sys.Reactions()).To(Equal([]string{"growth"}))

			text, ok := sys.Formula("growth")
			Expect(ok).To(BeTrue())
			Expect(text).To(Equal("0.1*y[0]"))
		})

		It("rejects a state of the wrong length", func() {
			_, err := sys.Derive(dynamo.State{1}, 0)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})

		It("is safe for concurrent use", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(x float64) {
					defer wg.Done()
					defer GinkgoRecover()
					dy, err := sys.Derive(dynamo.State{x, 10}, 0)
					Expect(err).NotTo(HaveOccurred())
					Expect(dy[0]).To(BeNumerically("~", 0.1*x, 1e-12))
				}(float64(i))
			}
			wg.Wait()
		})
	})

	It("keeps row and column order on a 2x2 network", func() {
		def := kinetics.Definition{
			Name:      "chain",
			Species:   []string{"A", "B"},
			Reactions: []string{"r1", "r2"},
			Params:    map[string]float64{"k1": 2, "k2": 3},
			Rates:     map[string]string{"r1": "k1*A", "r2": "k2*B"},
			MassBalances: map[string]map[string]float64{
				"A": {"r1": -1},
				"B": {"r1": 1, "r2": -1},
			},
		}
		sys, err := kinetics.Assemble(def)
		Expect(err).NotTo(HaveOccurred())

		m := sys.Matrix()
		Expect(m.Row(0)).To(Equal([]float64{-1, 0}))
		Expect(m.Row(1)).To(Equal([]float64{1, -1}))

		dy, err := sys.Derive(dynamo.State{1, 1}, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(dy).To(Equal(dynamo.State{-2, -1}))
	})

	It("fails on a reaction without a formula", func() {
		def := growth()
		def.Reactions = append(def.Reactions, "death")

		sys, err := kinetics.Assemble(def)
		Expect(sys).To(BeNil())
		Expect(err).To(MatchError(dynamo.ErrConfiguration))

		var cfgErr *dynamo.ConfigError
		Expect(err).To(BeAssignableToTypeOf(cfgErr))
		Expect(err.(*dynamo.ConfigError).Kind).To(Equal(dynamo.KindMissingFormula))
	})

	It("fails on cyclic derived quantities", func() {
		def := growth()
		def.Functions = map[string]string{"a": "b+1", "b": "a*2"}
		def.Rates = map[string]string{"growth": "a*X"}

		_, err := kinetics.Assemble(def)
		Expect(err).To(MatchError(dynamo.ErrCycle))
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
	})

	It("fails on a mass balance naming an undeclared reaction", func() {
		def := growth()
		def.MassBalances["S"]["ghost"] = 1

		_, err := kinetics.Assemble(def)
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
		Expect(err.Error()).To(ContainSubstring("ghost"))
	})

	DescribeTable("rejects malformed definitions",
		func(mutate func(*kinetics.Definition), kind string) {
			def := growth()
			mutate(&def)
			_, err := kinetics.Assemble(def)
			var cfgErr *dynamo.ConfigError
			Expect(err).To(HaveOccurred())
			Expect(err).To(BeAssignableToTypeOf(cfgErr))
			Expect(err.(*dynamo.ConfigError).Kind).To(Equal(kind))
		},
		Entry("no species", func(d *kinetics.Definition) { d.Species = nil }, dynamo.KindEmpty),
		Entry("no reactions", func(d *kinetics.Definition) { d.Reactions = nil }, dynamo.KindEmpty),
		Entry("invalid species name", func(d *kinetics.Definition) { d.Species[0] = "1X" }, dynamo.KindInvalidName),
		Entry("species shadowed by parameter", func(d *kinetics.Definition) { d.Params["X"] = 1 }, dynamo.KindDuplicate),
		Entry("duplicate reaction", func(d *kinetics.Definition) { d.Reactions = []string{"growth", "growth"} }, dynamo.KindDuplicate),
		Entry("short initial state", func(d *kinetics.Definition) { d.InitialState = []float64{1} }, dynamo.KindDimension),
	)

	It("surfaces an unresolved identifier on the first Derive", func() {
		def := growth()
		def.Params = nil

		sys, err := kinetics.Assemble(def)
		Expect(err).NotTo(HaveOccurred())
		Expect(sys.Unresolved()).To(HaveKeyWithValue("growth", []string{"mu"}))

		_, err = sys.Derive(dynamo.State{1, 10}, 0)
		Expect(err).To(MatchError(dynamo.ErrUnresolvedIdentifier))

		var evalErr *dynamo.EvalError
		Expect(err).To(BeAssignableToTypeOf(evalErr))
		Expect(err.(*dynamo.EvalError).Ident).To(Equal("mu"))
	})

	It("returns numeric errors unmodified", func() {
		def := growth()
		def.Rates = map[string]string{"growth": "mu/S"}

		sys, err := kinetics.Assemble(def)
		Expect(err).NotTo(HaveOccurred())

		_, err = sys.Derive(dynamo.State{1, 0}, 0)
		Expect(err).To(MatchError(dynamo.ErrNumeric))
	})

	It("applies parameter overrides without touching the definition", func() {
		def := growth()
		sys, err := kinetics.Assemble(def, kinetics.WithParams(map[string]float64{"mu": 0.5}))
		Expect(err).NotTo(HaveOccurred())
		Expect(def.Params["mu"]).To(Equal(0.1))

		dy, err := sys.Derive(dynamo.State{2, 10}, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(dy[0]).To(BeNumerically("~", 1.0, 1e-12))

		_, err = kinetics.Assemble(def, kinetics.WithParams(map[string]float64{"nope": 1}))
		Expect(err).To(MatchError(dynamo.ErrConfiguration))
	})

	It("evaluates derived quantities through shared frames", func() {
		def := kinetics.Definition{
			Name:      "monod",
			Species:   []string{"X", "S"},
			Reactions: []string{"growth"},
			Params:    map[string]float64{"mumax": 1, "Ks": 1, "Y": 0.5},
			Functions: map[string]string{
				"mu":  "mumax*S/(S+Ks)",
				"qS":  "mu/Y",
				"qSx": "qS*X",
			},
			Rates: map[string]string{"growth": "mu*X"},
			MassBalances: map[string]map[string]float64{
				"X": {"growth": 1},
				"S": {"growth": -2},
			},
		}
		sys, err := kinetics.Assemble(def)
		Expect(err).NotTo(HaveOccurred())

		vals, err := sys.Derived(dynamo.State{2, 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(vals).To(HaveKeyWithValue("mu", 0.5))
		Expect(vals).To(HaveKeyWithValue("qS", 1.0))
		Expect(vals).To(HaveKeyWithValue("qSx", 2.0))

		order := sys.DerivedNames()
		Expect(order).To(HaveLen(3))
		Expect(order[0]).To(Equal("mu"))

		text, ok := sys.DerivedFormula("qS")
		Expect(ok).To(BeTrue())
		Expect(text).To(Equal("mu(y)/0.5"))
	})
})

var _ = Describe("Definition", func() {
	It("clones deeply", func() {
		def := growth()
		c := def.Clone()
		c.Species[0] = "Z"
		c.Params["mu"] = 9
		c.MassBalances["X"]["growth"] = 7
		c.InitialState[0] = 3

		Expect(def.Species[0]).To(Equal("X"))
		Expect(def.Params["mu"]).To(Equal(0.1))
		Expect(def.MassBalances["X"]["growth"]).To(Equal(1.0))
		Expect(def.InitialState[0]).To(Equal(1.0))
	})

	It("defaults the initial state to zeros", func() {
		def := growth()
		def.InitialState = nil
		Expect(def.Initial()).To(Equal(dynamo.State{0, 0}))
	})

	It("lists parameters and derived quantities no formula mentions", func() {
		def := growth()
		Expect(def.Unreferenced()).To(BeEmpty())

		def.Params["Kp"] = 1
		def.Params["mux"] = 2
		def.Functions = map[string]string{"unused": "mu*2", "half": "X/2"}
		def.Rates = map[string]string{"growth": "mu*half"}
		Expect(def.Unreferenced()).To(Equal([]string{"Kp", "mux", "unused"}))
	})

	It("finds species by name", func() {
		def := growth()
		i, ok := def.SpeciesIndex("S")
		Expect(ok).To(BeTrue())
		Expect(i).To(Equal(1))
		_, ok = def.SpeciesIndex("Q")
		Expect(ok).To(BeFalse())
	})
})
