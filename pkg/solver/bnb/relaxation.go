package bnb

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/capbudget/portfolio/pkg/solver"
)

const (
	simplexTolerance = 1e-10

	// maxRelaxationVars skips the dense relaxation on very wide subproblems.
	maxRelaxationVars = 256
)

type relaxedRow struct {
	coeffs []float64
	sense  solver.Sense
	rhs    float64
}

// relaxationBound bounds the objective reachable below the current node by solving
// the linear relaxation over the free variables. It returns false when the relaxation
// is infeasible. Any other simplex failure degrades to the optimistic bound.
//
// The relaxation is put in standard form for lp.Simplex:
//
//	minimize  -w'x
//	s.t.      a'x + s = r   (<= rows)
//	          a'x - s = r   (>= rows)
//	          x + u   = 1   (one row per free variable)
//	          x, s, u >= 0
func (s *search) relaxationBound(objective, optimistic float64) (bound float64, feasible bool) {
	var freeVars []int
	column := make(map[int]int)
	for j, v := range s.value {
		if v == free {
			column[j] = len(freeVars)
			freeVars = append(freeVars, j)
		}
	}
	nf := len(freeVars)
	if nf == 0 || nf > maxRelaxationVars {
		return optimistic, true
	}

	rows := make([]relaxedRow, 0, len(s.rows)+nf)
	for i := range s.rows {
		c := &s.rows[i]
		coeffs := make([]float64, nf)
		residual := c.RHS
		touched := false
		for _, t := range c.Terms {
			switch s.value[t.Var] {
			case 1:
				residual -= t.Coeff
			case free:
				if t.Coeff != 0 {
					coeffs[column[t.Var]] += t.Coeff
					touched = true
				}
			}
		}
		if !touched {
			// already checked by consistent()
			continue
		}
		switch c.Sense {
		case solver.SenseEQ:
			rows = append(rows,
				relaxedRow{coeffs: coeffs, sense: solver.SenseLE, rhs: residual},
				relaxedRow{coeffs: coeffs, sense: solver.SenseGE, rhs: residual})
		default:
			rows = append(rows, relaxedRow{coeffs: coeffs, sense: c.Sense, rhs: residual})
		}
	}
	for k := 0; k < nf; k++ {
		coeffs := make([]float64, nf)
		coeffs[k] = 1
		rows = append(rows, relaxedRow{coeffs: coeffs, sense: solver.SenseLE, rhs: 1})
	}

	m := len(rows)
	n := nf + m
	A := mat.NewDense(m, n, nil)
	b := make([]float64, m)
	c := make([]float64, n)
	for k, j := range freeVars {
		c[k] = -s.model.Objective[j]
	}
	for i, r := range rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for k, a := range r.coeffs {
			if a != 0 {
				A.Set(i, k, sign*a)
			}
		}
		slack := 1.0
		if r.sense == solver.SenseGE {
			slack = -1
		}
		A.Set(i, nf+i, sign*slack)
		b[i] = sign * r.rhs
	}

	optF, err := simplex(c, A, b)
	switch {
	case err == nil:
		return objective - optF, true
	case errors.Is(err, lp.ErrInfeasible):
		return 0, false
	default:
		return optimistic, true
	}
}

func simplex(c []float64, A mat.Matrix, b []float64) (optF float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("bnb: simplex failed")
		}
	}()
	optF, _, err = lp.Simplex(c, A, b, simplexTolerance, nil)
	return optF, err
}
