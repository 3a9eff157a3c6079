package regress

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Ridge is a weighted linear regression with L2 regularization on the
// coefficients. The intercept is not penalized. It stands in for the
// Bayesian-ridge leaf models of the reference design: the fixed regularizer
// keeps single-sample and collinear leaf fits solvable.
type Ridge struct {
	// Lambda is the regularization strength; 0 uses DefaultRidgeLambda.
	Lambda float64

	coef      []float64
	intercept float64
}

// DefaultRidgeLambda keeps near-singular systems stable without visibly
// biasing well-conditioned fits.
const DefaultRidgeLambda = 1e-3

// Fit solves the regularized weighted normal equations.
func (rg *Ridge) Fit(X *mat.Dense, y, w []float64) error {
	n, d, err := checkTrainingSet(X, y, w)
	if err != nil {
		return err
	}
	lambda := rg.Lambda
	if lambda <= 0 {
		lambda = DefaultRidgeLambda
	}

	// Augmented design matrix [X | 1] so the intercept falls out of the
	// same solve.
	p := d + 1
	m := mat.NewDense(p, p, nil)
	b := mat.NewVecDense(p, nil)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		wi := 1.0
		if w != nil {
			wi = w[i]
		}
		for j := 0; j < d; j++ {
			row[j] = X.At(i, j)
		}
		row[d] = 1
		for j := 0; j < p; j++ {
			b.SetVec(j, b.AtVec(j)+wi*row[j]*y[i])
			for k := 0; k < p; k++ {
				m.Set(j, k, m.At(j, k)+wi*row[j]*row[k])
			}
		}
	}
	for j := 0; j < d; j++ { // intercept stays unpenalized
		m.Set(j, j, m.At(j, j)+lambda)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(m, b); err != nil {
		return fmt.Errorf("ridge solve failed: %w", err)
	}

	rg.coef = make([]float64, d)
	for j := 0; j < d; j++ {
		rg.coef[j] = sol.AtVec(j)
	}
	rg.intercept = sol.AtVec(d)
	return nil
}

// Predict evaluates the linear model for each row of X.
func (rg *Ridge) Predict(X *mat.Dense) []float64 {
	n, d := X.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v := rg.intercept
		for j := 0; j < d; j++ {
			v += rg.coef[j] * X.At(i, j)
		}
		out[i] = v
	}
	return out
}

var _ Regressor = (*Ridge)(nil)
