package solver

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Candidate is a selection of variable indices together with its objective value.
type Candidate struct {
	// Selected holds variable indices in increasing order.
	Selected  []int
	Objective float64
}

// Key identifies the selected set.
func (c *Candidate) Key() string {
	return SelectionKey(c.Selected)
}

// Mask returns the selection as a 0/1 assignment over n variables.
func (c *Candidate) Mask(n int) []bool {
	x := make([]bool, n)
	for _, j := range c.Selected {
		x[j] = true
	}
	return x
}

// SelectionKey returns a canonical key for a sorted selection.
func SelectionKey(selected []int) string {
	var b strings.Builder
	for i, j := range selected {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(j))
	}
	return b.String()
}

// SelectionFromValues rounds an assignment to the indices set to one. It returns
// false when a value is not within Tolerance of 0 or 1.
func SelectionFromValues(values []float64) ([]int, bool) {
	var selected []int
	for j, v := range values {
		switch {
		case math.Abs(v-1) <= Tolerance:
			selected = append(selected, j)
		case math.Abs(v) <= Tolerance:
		default:
			return nil, false
		}
	}
	return selected, true
}

// ValuesFromMask turns a 0/1 mask into assignment values.
func ValuesFromMask(x []bool) []float64 {
	values := make([]float64, len(x))
	for j, on := range x {
		if on {
			values[j] = 1
		}
	}
	return values
}

// NoGoodCut forbids the exact selection again:
//
//	sum(x_j, j in S) - sum(x_j, j not in S) <= |S| - 1
//
// selected must hold distinct indices below n.
func NoGoodCut(selected []int, n int) Constraint {
	in := make([]bool, n)
	for _, j := range selected {
		in[j] = true
	}
	terms := make([]Term, n)
	for j := 0; j < n; j++ {
		coeff := -1.0
		if in[j] {
			coeff = 1
		}
		terms[j] = Term{Var: j, Coeff: coeff}
	}
	sorted := append([]int(nil), selected...)
	sort.Ints(sorted)
	return LessOrEqual(fmt.Sprintf("nogood[%s]", SelectionKey(sorted)), terms, float64(len(selected)-1))
}
