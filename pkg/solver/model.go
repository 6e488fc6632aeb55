package solver

import (
	"fmt"
	"math"
)

// Tolerance is the absolute slack accepted when checking a constraint.
const Tolerance = 1e-6

// Sense is the relation of a linear constraint.
type Sense int

// enumeration of Sense
const (
	SenseLE Sense = iota
	SenseGE
	SenseEQ
)

func (s Sense) String() string {
	switch s {
	case SenseLE:
		return "<="
	case SenseGE:
		return ">="
	case SenseEQ:
		return "=="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Term is a coefficient applied to a variable.
type Term struct {
	Var   int
	Coeff float64
}

// Constraint is a named linear constraint over binary variables.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// LessOrEqual builds sum(terms) <= rhs.
func LessOrEqual(name string, terms []Term, rhs float64) Constraint {
	return Constraint{Name: name, Terms: terms, Sense: SenseLE, RHS: rhs}
}

// GreaterOrEqual builds sum(terms) >= rhs.
func GreaterOrEqual(name string, terms []Term, rhs float64) Constraint {
	return Constraint{Name: name, Terms: terms, Sense: SenseGE, RHS: rhs}
}

// Activity evaluates the left-hand side for a 0/1 assignment.
func (c *Constraint) Activity(x []bool) float64 {
	var sum float64
	for _, t := range c.Terms {
		if x[t.Var] {
			sum += t.Coeff
		}
	}
	return sum
}

// Satisfied reports whether the assignment meets the constraint within Tolerance.
func (c *Constraint) Satisfied(x []bool) bool {
	a := c.Activity(x)
	switch c.Sense {
	case SenseLE:
		return a <= c.RHS+Tolerance
	case SenseGE:
		return a >= c.RHS-Tolerance
	default:
		return math.Abs(a-c.RHS) <= Tolerance
	}
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s: %d terms %s %g", c.Name, len(c.Terms), c.Sense, c.RHS)
}

// Model is a binary maximization program: one 0/1 variable per entry of VarNames.
type Model struct {
	Name        string
	VarNames    []string
	Objective   []float64
	Constraints []Constraint
}

// NumVars returns the number of binary variables.
func (m *Model) NumVars() int {
	return len(m.VarNames)
}

// VarNamesOf returns the names of the given variables, in the given order.
func (m *Model) VarNamesOf(indices []int) []string {
	out := make([]string, len(indices))
	for k, j := range indices {
		out[k] = m.VarNames[j]
	}
	return out
}

// Validate checks the structural consistency of the model.
func (m *Model) Validate() error {
	if len(m.Objective) != len(m.VarNames) {
		return fmt.Errorf("model %q: objective has %d coefficients for %d variables", m.Name, len(m.Objective), len(m.VarNames))
	}
	for _, w := range m.Objective {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("model %q: objective coefficient is not finite", m.Name)
		}
	}
	for _, c := range m.Constraints {
		if err := m.ValidateConstraint(&c); err != nil {
			return err
		}
	}
	return nil
}

// ValidateConstraint checks that c only references variables of the model with finite
// coefficients.
func (m *Model) ValidateConstraint(c *Constraint) error {
	if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
		return fmt.Errorf("model %q: constraint %q has a non-finite right-hand side", m.Name, c.Name)
	}
	for _, t := range c.Terms {
		if t.Var < 0 || t.Var >= len(m.VarNames) {
			return fmt.Errorf("model %q: constraint %q references variable %d out of range", m.Name, c.Name, t.Var)
		}
		if math.IsNaN(t.Coeff) || math.IsInf(t.Coeff, 0) {
			return fmt.Errorf("model %q: constraint %q has a non-finite coefficient", m.Name, c.Name)
		}
	}
	return nil
}

// Evaluate returns the objective value of an assignment.
func (m *Model) Evaluate(x []bool) float64 {
	var sum float64
	for j, on := range x {
		if on {
			sum += m.Objective[j]
		}
	}
	return sum
}

// Violated returns the first constraint of the model, or of the extra cuts, that the
// assignment violates, or nil when it is feasible.
func (m *Model) Violated(x []bool, cuts ...Constraint) *Constraint {
	for i := range m.Constraints {
		if !m.Constraints[i].Satisfied(x) {
			return &m.Constraints[i]
		}
	}
	for i := range cuts {
		if !cuts[i].Satisfied(x) {
			return &cuts[i]
		}
	}
	return nil
}
