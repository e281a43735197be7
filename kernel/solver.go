package kernel

import (
	"math"

	"gonum.org/v1/gonum/mat"

	kerrors "github.com/ezoic/kernreg/pkg/errors"
)

// pinvRcond is the relative cutoff below which singular values are treated
// as zero by pseudoInverse.
const pinvRcond = 1e-15

const fallbackPseudoInverse = "pseudo-inverse"

// solveLocal fits one locally weighted polynomial and evaluates it at a query.
//
// It solves (XᵀWX + tol·I) c = XᵀWy with W = diag(w) and returns x0ᵀc. X is
// the n×p training feature matrix, x0 the query's p features and w its n
// kernel weights. The direct LU solve is used unless gonum reports the system
// as singular or ill-conditioned, in which case c is computed with the
// Moore–Penrose pseudo-inverse and the returned warning is non-nil.
func solveLocal(X *mat.Dense, y *mat.VecDense, x0, w []float64, tol float64) (float64, *kerrors.SingularMatrixWarning, error) {
	n, p := X.Dims()
	if len(w) != n || y.Len() != n {
		return 0, nil, kerrors.NewDimensionError("solveLocal", n, len(w), 0)
	}
	if len(x0) != p {
		return 0, nil, kerrors.NewDimensionError("solveLocal", p, len(x0), 1)
	}

	// XᵀW scales column j of Xᵀ by w[j].
	xtw := mat.NewDense(p, n, nil)
	for j := 0; j < n; j++ {
		for k := 0; k < p; k++ {
			xtw.Set(k, j, X.At(j, k)*w[j])
		}
	}

	a := mat.NewDense(p, p, nil)
	a.Mul(xtw, X)
	for k := 0; k < p; k++ {
		a.Set(k, k, a.At(k, k)+tol)
	}
	b := mat.NewVecDense(p, nil)
	b.MulVec(xtw, y)

	q := mat.NewVecDense(p, x0)

	if kerrors.CheckMatrix("solveLocal", a, p, p, 0) != nil || kerrors.CheckMatrix("solveLocal", b, p, 1, 0) != nil {
		return math.NaN(), nil, nil
	}

	var c mat.VecDense
	err := c.SolveVec(a, b)
	if err == nil && kerrors.CheckNumericalStability("solveLocal", c.RawVector().Data, 0) == nil {
		return mat.Dot(q, &c), nil, nil
	}

	var cond mat.Condition
	if err != nil && !kerrors.As(err, &cond) {
		return 0, nil, kerrors.Wrap(err, "solveLocal: direct solve")
	}
	if err == nil {
		cond = mat.Condition(math.Inf(1))
	}

	pinv, err := pseudoInverse(a)
	if err != nil {
		return 0, nil, err
	}
	c.Reset()
	c.MulVec(pinv, b)

	warning := kerrors.NewSingularMatrixWarning("solveLocal", p, float64(cond), fallbackPseudoInverse)
	return mat.Dot(q, &c), warning, nil
}

// pseudoInverse returns the Moore–Penrose pseudo-inverse of the square matrix
// a, computed as V·Σ⁺·Uᵀ from its thin SVD.
func pseudoInverse(a *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, kerrors.NewModelError("pseudoInverse", "SVD did not converge", kerrors.ErrSingularMatrix)
	}

	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	cutoff := pinvRcond * s[0]
	rows, _ := v.Dims()
	for j, sv := range s {
		inv := 0.0
		if sv > cutoff {
			inv = 1 / sv
		}
		for i := 0; i < rows; i++ {
			v.Set(i, j, v.At(i, j)*inv)
		}
	}

	var pinv mat.Dense
	pinv.Mul(&v, u.T())
	return &pinv, nil
}
