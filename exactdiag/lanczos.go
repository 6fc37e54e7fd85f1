package exactdiag

import (
	"context"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/localham/exactdiag/util"
)

// ErrNoConvergence is returned when Eigsh runs out of restarts before finding all requested eigenpairs.
var ErrNoConvergence = errors.New("eigensolver did not converge")

// ValVec is an eigenvalue and its eigenvector.
type ValVec struct {
	Val float64
	Vec []complex128
}

// Result is the outcome of Eigsh.
type Result struct {
	// Eigen holds the eigenpairs in ascending order of eigenvalue.
	Eigen []ValVec
	// MatVecs is the number of operator applications.
	MatVecs int
	// Restarts is the number of Lanczos cycles.
	Restarts int
	// History is the lowest unconverged Ritz value at the end of each cycle.
	History []float64
}

// LanczosOptions are options for Eigsh.
type LanczosOptions struct {
	krylovDim   int
	tol         float64
	minTol      float64
	maxRestarts int
	seed        uint64
	noise       float64
	start       []complex128
	logger      *zap.Logger
	logInterval time.Duration
}

// NewLanczosOptions returns the default Lanczos options.
func NewLanczosOptions() LanczosOptions {
	opt := LanczosOptions{}
	opt.krylovDim = 48
	opt.tol = 1e-10
	opt.maxRestarts = 1000
	opt.noise = 1e-3
	opt.logger = zap.NewNop()
	opt.logInterval = 5 * time.Second
	return opt
}

// KrylovDim sets the maximum number of Lanczos vectors per cycle.
func (opt LanczosOptions) KrylovDim(m int) LanczosOptions {
	opt.krylovDim = m
	return opt
}

// Tol sets the convergence criterion |Ax - λx| <= tol * max(1, |λ|).
func (opt LanczosOptions) Tol(tol float64) LanczosOptions {
	opt.tol = tol
	return opt
}

// SingleTol is the tightest tolerance reachable with a single precision operator.
const SingleTol = 1e-5

// Precision raises the tolerance to what an operator applied in arithmetic p can reach.
func (opt LanczosOptions) Precision(p Precision) LanczosOptions {
	opt.minTol = 0
	if p == Single {
		opt.minTol = SingleTol
	}
	return opt
}

// MaxRestarts sets the maximum number of Lanczos cycles.
func (opt LanczosOptions) MaxRestarts(r int) LanczosOptions {
	opt.maxRestarts = r
	return opt
}

// Seed sets the seed of the random start and restart vectors.
func (opt LanczosOptions) Seed(seed uint64) LanczosOptions {
	opt.seed = seed
	return opt
}

// Start sets the initial vector.
func (opt LanczosOptions) Start(v []complex128) LanczosOptions {
	opt.start = v
	return opt
}

// Logger sets the progress logger.
func (opt LanczosOptions) Logger(l *zap.Logger) LanczosOptions {
	opt.logger = l
	return opt
}

// LogInterval sets the minimum interval between progress logs.
func (opt LanczosOptions) LogInterval(d time.Duration) LanczosOptions {
	opt.logInterval = d
	return opt
}

// Eigsh returns the k lowest eigenpairs of the Hermitian operator a.
// Each cycle builds a fully reorthogonalized Krylov basis orthogonal to the eigenvectors found so far,
// and locks the lowest Ritz pair once its residual is below tolerance.
// Restarts begin from the remaining wanted Ritz vectors. Noise is added after each lock,
// so that directions of degenerate eigenspaces missing from the previous basis are recovered.
// Eigenvectors have unit norm and their largest component is real and positive.
func Eigsh(ctx context.Context, a LinearOperator, k int, options ...LanczosOptions) (Result, error) {
	opt := NewLanczosOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	if opt.logger == nil {
		opt.logger = zap.NewNop()
	}
	n := a.Dim()
	if k < 1 || k > n {
		return Result{}, errors.Errorf("k %d not in [1, %d]", k, n)
	}
	if opt.krylovDim < 2 {
		return Result{}, errors.Errorf("krylov dimension %d < 2", opt.krylovDim)
	}
	if opt.start != nil && len(opt.start) != n {
		return Result{}, errors.Errorf("start vector length %d, expected %d", len(opt.start), n)
	}

	tol := max(opt.tol, opt.minTol)
	s := &lanczos{a: a, n: n, rng: rand.New(rand.NewPCG(opt.seed, 0x6c616e637a6f73))}
	start := s.random()
	if opt.start != nil {
		start = slices.Clone(opt.start)
	}
	throttle := util.NewSkipThrottler(opt.logInterval)

	var res Result
	for res.Restarts = 0; len(res.Eigen) < k; res.Restarts++ {
		if res.Restarts >= opt.maxRestarts {
			return res, errors.Wrapf(ErrNoConvergence, "%d of %d eigenpairs after %d restarts", len(res.Eigen), k, res.Restarts)
		}
		if err := ctx.Err(); err != nil {
			return res, errors.Wrap(err, "")
		}

		m := min(opt.krylovDim, n-len(res.Eigen))
		basis, alpha, beta, err := s.krylov(ctx, start, res.Eigen, m)
		res.MatVecs += len(basis)
		if err != nil {
			return res, errors.Wrap(err, "")
		}
		theta, y, err := tridiagonalEigen(alpha, beta)
		if err != nil {
			return res, errors.Wrap(err, "")
		}

		last := len(alpha) - 1
		residual := beta[last] * math.Abs(y.At(last, 0))
		res.History = append(res.History, theta[0])
		if throttle.Ok() {
			opt.logger.Info("lanczos", zap.Int("restart", res.Restarts), zap.Int("locked", len(res.Eigen)), zap.Int("basis", len(basis)), zap.Float64("ritz", theta[0]), zap.Float64("residual", residual))
		}

		first := 0
		if residual <= tol*max(1, math.Abs(theta[0])) {
			x := ritzVector(basis, y, 0)
			fixPhase(x)
			res.Eigen = append(res.Eigen, ValVec{Val: theta[0], Vec: x})
			opt.logger.Debug("locked", zap.Int("index", len(res.Eigen)-1), zap.Float64("val", theta[0]), zap.Float64("residual", residual), zap.Int("restart", res.Restarts))
			first = 1
		}

		// Restart from the Ritz vectors still wanted.
		start = make([]complex128, n)
		for i := first; i < min(len(theta), first+k-len(res.Eigen)); i++ {
			cmplxs.Add(start, ritzVector(basis, y, i))
		}
		// After a lock, the next eigenvector may be a degenerate partner absent from the basis.
		if first == 1 {
			noise := s.random()
			cmplxs.ScaleReal(opt.noise*max(cmplxs.Norm(start, 2), 1)/cmplxs.Norm(noise, 2), noise)
			cmplxs.Add(start, noise)
		}
	}

	slices.SortStableFunc(res.Eigen, func(a, b ValVec) int {
		switch {
		case a.Val < b.Val:
			return -1
		case a.Val > b.Val:
			return 1
		}
		return 0
	})
	opt.logger.Info("converged", zap.Int("k", k), zap.Int("restarts", res.Restarts), zap.Int("matvecs", res.MatVecs), zap.Float64("lowest", res.Eigen[0].Val))
	return res, nil
}

type lanczos struct {
	a   LinearOperator
	n   int
	rng *rand.Rand
}

// krylov returns an orthonormal basis of at most m vectors of the Krylov space of start,
// projected onto the complement of locked, together with the diagonal alpha and off-diagonal beta of the
// tridiagonal projection. beta[len(alpha)-1] is the norm of the residual after the last vector.
func (s *lanczos) krylov(ctx context.Context, start []complex128, locked []ValVec, m int) ([][]complex128, []float64, []float64, error) {
	v := slices.Clone(start)
	for range 3 {
		orthogonalize(v, locked, nil)
		if nrm := cmplxs.Norm(v, 2); nrm > 1e-8 {
			cmplxs.ScaleReal(1/nrm, v)
			break
		}
		v = s.random()
	}

	basis := make([][]complex128, 0, m)
	alpha := make([]float64, 0, m)
	beta := make([]float64, 0, m)
	var scale float64
	for j := range m {
		if err := ctx.Err(); err != nil {
			return basis, alpha, beta, errors.Wrap(err, "")
		}

		basis = append(basis, v)
		w := make([]complex128, s.n)
		if err := s.a.MatVec(w, v); err != nil {
			return basis, alpha, beta, errors.Wrap(err, "")
		}
		a := real(cmplxs.Dot(v, w))
		// Twice is enough.
		orthogonalize(w, locked, basis)
		orthogonalize(w, locked, basis)
		b := cmplxs.Norm(w, 2)
		alpha = append(alpha, a)
		beta = append(beta, b)

		scale = max(scale, math.Abs(a), b)
		if b <= 1e-13*max(scale, 1) || j == m-1 {
			break
		}
		cmplxs.ScaleReal(1/b, w)
		v = w
	}
	return basis, alpha, beta, nil
}

func (s *lanczos) random() []complex128 {
	v := make([]complex128, s.n)
	for i := range v {
		v[i] = complex(s.rng.NormFloat64(), s.rng.NormFloat64())
	}
	return v
}

// orthogonalize removes from w its components along the locked eigenvectors and the basis vectors.
func orthogonalize(w []complex128, locked []ValVec, basis [][]complex128) {
	for _, vv := range locked {
		cmplxs.AddScaled(w, -cmplxs.Dot(vv.Vec, w), vv.Vec)
	}
	for _, b := range basis {
		cmplxs.AddScaled(w, -cmplxs.Dot(b, w), b)
	}
}

// tridiagonalEigen returns the ascending eigenvalues and the eigenvectors of the symmetric tridiagonal matrix
// with diagonal alpha and off-diagonal beta[:len(alpha)-1].
func tridiagonalEigen(alpha, beta []float64) ([]float64, *mat.Dense, error) {
	m := len(alpha)
	t := mat.NewSymDense(m, nil)
	for i := range m {
		t.SetSym(i, i, alpha[i])
		if i+1 < m {
			t.SetSym(i, i+1, beta[i])
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(t, true); !ok {
		return nil, nil, errors.Errorf("tridiagonal factorization of size %d failed", m)
	}
	y := mat.NewDense(m, m, nil)
	eig.VectorsTo(y)
	return eig.Values(nil), y, nil
}

// ritzVector returns the unit norm combination of the basis vectors with coefficients from column i of y.
func ritzVector(basis [][]complex128, y *mat.Dense, i int) []complex128 {
	x := make([]complex128, len(basis[0]))
	for j, b := range basis {
		cmplxs.AddScaled(x, complex(y.At(j, i), 0), b)
	}
	cmplxs.ScaleReal(1/cmplxs.Norm(x, 2), x)
	return x
}

// fixPhase rotates v so that its largest component is real and positive.
func fixPhase(v []complex128) {
	var largest complex128
	for _, c := range v {
		if cmplx.Abs(c) > cmplx.Abs(largest) {
			largest = c
		}
	}
	if largest == 0 {
		return
	}
	cmplxs.Scale(cmplx.Conj(largest)/complex(cmplx.Abs(largest), 0), v)
}
