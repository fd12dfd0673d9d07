package gosecant_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	gosecant "github.com/njchilds90/gosecant"
)

var ignoreExpressions = cmpopts.IgnoreFields(gosecant.Result{}, "Function", "Derivative")

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

var _ = Describe("Minimize", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("with 16/x + 2*x**2 on [0.5, 5]", func() {
		var (
			problem gosecant.Problem
			res     *gosecant.Result
		)

		BeforeEach(func() {
			problem = gosecant.Problem{Fx: "16/x + 2*x**2", A: 0.5, B: 5, Tol: 1e-4}
			var err error
			res, err = gosecant.Minimize(ctx, problem)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should locate the minimizer 2**(2/3)", func() {
			Expect(res.Converged).To(BeTrue())
			Expect(res.Err()).To(Succeed())
			Expect(res.XMin).To(BeNumerically("~", math.Cbrt(4), 1e-3))
			Expect(res.FMin).To(BeNumerically("~", 15.1190, 1e-3))
			Expect(res.Derivative.String()).To(Equal("-16/x**2 + 4*x"))
		})

		It("should satisfy a termination rule", func() {
			fz, err := res.Derivative.Evaluate(res.XMin)
			Expect(err).NotTo(HaveOccurred())
			last := res.Iterations[len(res.Iterations)-1]
			switch res.Reason {
			case gosecant.StopDerivativeTolerance:
				Expect(math.Abs(fz)).To(BeNumerically("<", problem.Tol))
			case gosecant.StopBracketWidth:
				l, r := last.L, last.R
				if sign(last.FPrimeZ) == sign(last.FPrimeL) {
					l = last.Z
				} else {
					r = last.Z
				}
				Expect(r - l).To(BeNumerically("<", problem.Tol))
			default:
				Fail("unexpected stop reason " + string(res.Reason))
			}
			Expect(res.Iterations).To(HaveLen(last.Iteration))
			Expect(last.Z).To(Equal(res.XMin))
		})

		It("should record the first secant step from the initial bracket", func() {
			first := res.Iterations[0]
			Expect(first.Iteration).To(Equal(1))
			Expect(first.L).To(Equal(0.5))
			Expect(first.R).To(Equal(5.0))
			Expect(first.FPrimeL).To(BeNumerically("~", -62, 1e-12))
			Expect(first.FPrimeR).To(BeNumerically("~", 19.36, 1e-12))
			Expect(first.Z).To(BeNumerically("~", 3.92920, 1e-5))
		})

		It("should keep a sign change across every recorded bracket", func() {
			for _, rec := range res.Iterations {
				Expect(sign(rec.FPrimeL)).NotTo(Equal(sign(rec.FPrimeR)), "iteration %d", rec.Iteration)
			}
		})

		It("should only ever shrink the bracket", func() {
			for i, rec := range res.Iterations {
				Expect(rec.Iteration).To(Equal(i + 1))
				Expect(rec.L).To(BeNumerically(">=", problem.A))
				Expect(rec.R).To(BeNumerically("<=", problem.B))
				Expect(rec.Z).To(BeNumerically(">=", rec.L))
				Expect(rec.Z).To(BeNumerically("<=", rec.R))
				if i > 0 {
					Expect(rec.Width()).To(BeNumerically("<=", res.Iterations[i-1].Width()))
				}
			}
		})

		It("should produce an identical trace on every run", func() {
			again, err := gosecant.Minimize(ctx, problem)
			Expect(err).NotTo(HaveOccurred())
			Expect(cmp.Diff(res, again, ignoreExpressions)).To(BeEmpty())
		})

		It("should serialize with the documented field names", func() {
			raw, err := json.Marshal(res)
			Expect(err).NotTo(HaveOccurred())
			var doc map[string]any
			Expect(json.Unmarshal(raw, &doc)).To(Succeed())
			Expect(doc).To(HaveKey("x_min"))
			Expect(doc).To(HaveKey("f_min"))
			Expect(doc).To(HaveKeyWithValue("stop_reason", "derivative_tolerance"))
			Expect(doc).To(HaveKeyWithValue("derivative", "-16/x**2 + 4*x"))
			iters := doc["iterations"].([]any)
			Expect(iters[0]).To(HaveKeyWithValue("f'(L)", BeNumerically("~", -62, 1e-12)))
			Expect(iters[0]).To(HaveKeyWithValue("iteration", BeNumerically("==", 1)))
		})
	})

	Context("with other differentiable functions", func() {
		DescribeTable("should converge to the known minimizer",
			func(fx string, a, b, want float64) {
				res, err := gosecant.Minimize(ctx, gosecant.Problem{Fx: fx, A: a, B: b, Tol: 1e-8})
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Converged).To(BeTrue())
				Expect(res.XMin).To(BeNumerically("~", want, 1e-6))
			},
			Entry("parabola", "x**2 - 4*x", 0.0, 5.0, 2.0),
			Entry("sine", "sin(x)", 3.0, 6.0, 3*math.Pi/2),
			Entry("exponential", "exp(x) - 2*x", 0.0, 2.0, math.Ln2),
			Entry("shifted cosh", "cosh(x - 1)", -2.0, 3.0, 1.0),
		)
	})

	Context("when the iteration limit is reached", func() {
		It("should report the last secant point without an error", func() {
			res, err := gosecant.Minimize(ctx, gosecant.Problem{Fx: "x**4", A: -1, B: 2, Tol: 1e-6})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Converged).To(BeFalse())
			Expect(res.Reason).To(Equal(gosecant.StopIterationLimit))
			Expect(res.Iterations).To(HaveLen(gosecant.DefaultMaxIterations))
			Expect(res.Err()).To(MatchError(gosecant.ErrNotConverged))
			Expect(res.XMin).To(Equal(res.Iterations[len(res.Iterations)-1].Z))
		})

		It("should honor a per-problem limit", func() {
			res, err := gosecant.Minimize(ctx, gosecant.Problem{Fx: "x**4", A: -1, B: 2, Tol: 1e-6, MaxIterations: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Iterations).To(HaveLen(5))
		})

		It("should fall back to the solver default", func() {
			s := gosecant.NewSolver(gosecant.SolverConfig{MaxIterations: 7})
			res, err := s.Minimize(ctx, gosecant.Problem{Fx: "x**4", A: -1, B: 2, Tol: 1e-6})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Iterations).To(HaveLen(7))
		})
	})

	Context("with invalid input", func() {
		DescribeTable("should fail before iterating",
			func(p gosecant.Problem, kind gosecant.Kind) {
				res, err := gosecant.Minimize(ctx, p)
				Expect(err).To(HaveOccurred())
				Expect(res).To(BeNil())
				Expect(gosecant.KindOf(err)).To(Equal(kind))
			},
			Entry("equal bounds", gosecant.Problem{Fx: "x**2", A: 1, B: 1, Tol: 1e-4}, gosecant.KindInvalidArgument),
			Entry("reversed bounds", gosecant.Problem{Fx: "x**2", A: 2, B: 1, Tol: 1e-4}, gosecant.KindInvalidArgument),
			Entry("zero tolerance", gosecant.Problem{Fx: "x**2", A: -1, B: 1, Tol: 0}, gosecant.KindInvalidArgument),
			Entry("negative tolerance", gosecant.Problem{Fx: "x**2", A: -1, B: 1, Tol: -1e-3}, gosecant.KindInvalidArgument),
			Entry("NaN bound", gosecant.Problem{Fx: "x**2", A: math.NaN(), B: 1, Tol: 1e-4}, gosecant.KindInvalidArgument),
			Entry("negative limit", gosecant.Problem{Fx: "x**2", A: -1, B: 1, Tol: 1e-4, MaxIterations: -1}, gosecant.KindInvalidArgument),
			Entry("unknown identifier", gosecant.Problem{Fx: "16/y", A: 1, B: 2, Tol: 1e-4}, gosecant.KindParse),
			Entry("no sign change", gosecant.Problem{Fx: "x**2", A: 1, B: 2, Tol: 1e-4}, gosecant.KindInvalidBracket),
			Entry("pole at endpoint", gosecant.Problem{Fx: "16/x + 2*x**2", A: 0, B: 5, Tol: 1e-4}, gosecant.KindInvalidBracket),
		)

		It("should check arguments before compiling", func() {
			_, err := gosecant.Minimize(ctx, gosecant.Problem{Fx: "16/y", A: 1, B: 1, Tol: 1e-4})
			Expect(err).To(MatchError(gosecant.ErrInvalidArgument))
		})

		It("should keep the domain cause of an invalid bracket", func() {
			_, err := gosecant.Minimize(ctx, gosecant.Problem{Fx: "sqrt(x)", A: -1, B: 1, Tol: 1e-4})
			Expect(errors.Is(err, gosecant.ErrInvalidBracket)).To(BeTrue())
			Expect(errors.Is(err, gosecant.ErrDomain)).To(BeTrue())
		})
	})

	Context("with a cancelled context", func() {
		It("should return the context error and no result", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			res, err := gosecant.Minimize(cctx, gosecant.Problem{Fx: "x**2", A: -1, B: 2, Tol: 1e-6})
			Expect(err).To(MatchError(context.Canceled))
			Expect(res).To(BeNil())
		})
	})

	Context("with a configured solver", func() {
		It("should reuse compiled expressions across calls", func() {
			c := gosecant.NewCompiler(8)
			s := gosecant.NewSolver(gosecant.SolverConfig{Compiler: c})
			first, err := s.Minimize(ctx, gosecant.Problem{Fx: "x**2 - 4*x", A: 0, B: 5, Tol: 1e-6})
			Expect(err).NotTo(HaveOccurred())
			second, err := s.Minimize(ctx, gosecant.Problem{Fx: "x**2 - 4*x", A: 1, B: 4, Tol: 1e-6})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Len()).To(Equal(1))
			Expect(second.Function).To(BeIdenticalTo(first.Function))
		})

		It("should log every iteration at debug level", func() {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			res, err := gosecant.NewSolver(gosecant.SolverConfig{Logger: logger}).Minimize(ctx,
				gosecant.Problem{Fx: "sin(x)", A: 3, B: 6, Tol: 1e-8})
			Expect(err).NotTo(HaveOccurred())
			Expect(bytes.Count(buf.Bytes(), []byte(`"msg":"secant iteration"`))).To(Equal(len(res.Iterations)))
			Expect(buf.String()).To(ContainSubstring(`"msg":"minimization finished"`))
		})

		It("should give identical results to concurrent callers", func() {
			s := gosecant.NewSolver(gosecant.SolverConfig{Compiler: gosecant.NewCompiler(4)})
			p := gosecant.Problem{Fx: "16/x + 2*x**2", A: 0.5, B: 5, Tol: 1e-4}
			want, err := s.Minimize(ctx, p)
			Expect(err).NotTo(HaveOccurred())

			const workers = 8
			results := make([]*gosecant.Result, workers)
			var wg sync.WaitGroup
			for i := range workers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					res, err := s.Minimize(ctx, p)
					Expect(err).NotTo(HaveOccurred())
					results[i] = res
				}()
			}
			wg.Wait()
			for _, got := range results {
				Expect(cmp.Diff(want, got, ignoreExpressions)).To(BeEmpty())
			}
		})
	})
})
