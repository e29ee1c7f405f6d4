package surface

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/interface.report/internal/monitoring"
)

// GrowthDiagnostics describes how one side reached its pivot target.
type GrowthDiagnostics struct {
	// Seeds is the number of seed pivots used for the first solve.
	Seeds int
	// Solves counts the linear solves, including the seed solve.
	Solves int
	// Relaxations counts tolerance increases after empty selections.
	Relaxations int
	// Pruned is the number of candidates discarded as too far away.
	Pruned int
	// Tau is the pivot tolerance in force when the target was reached.
	Tau float64
	// Area is the intrinsic area of the fitted surface at qm.
	Area float64
}

// Build is the outcome of pivot growth for both sides of one frame.
type Build struct {
	Params         Params
	Cell           Cell
	Coeff          [2][]float64
	Pivots         [2][]int
	Classification *Classification
	Diagnostics    [2]GrowthDiagnostics
}

// Surface returns an evaluator for the fitted coefficients of side s.
func (b *Build) Surface(s Side) *Surface {
	return NewSurface(b.Coeff[s], b.Params.QM, b.Cell)
}

// Roles returns the final role of every molecule. Molecules that are
// neither vapour nor pivots report RoleCandidate.
func (b *Build) Roles() []Role {
	roles := make([]Role, len(b.Classification.Vapour))
	for i, v := range b.Classification.Vapour {
		if v {
			roles[i] = RoleVapour
		}
	}
	for _, s := range Sides {
		for _, idx := range b.Pivots[s] {
			roles[idx] = pivotRole(s)
		}
	}
	return roles
}

// BuildSurface classifies the frame and grows the pivot set of each side
// until it holds p.N0 molecules. The frame must already be centred so that
// the two interfaces sit either side of z=0.
func BuildSurface(f *Frame, p Params) (*Build, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	cls := Classify(f, p.MaxR(), p.VLim, p.NCube)
	b := &Build{Params: p, Cell: f.Cell, Classification: cls}
	for _, s := range Sides {
		g := newGrower(f, p, s, cls)
		if err := g.run(); err != nil {
			return nil, err
		}
		b.Coeff[s] = g.coeff
		b.Pivots[s] = g.pivots
		b.Diagnostics[s] = g.diag
		monitoring.Logf("[surface] %s: %d pivots after %d solves (%d seeds, tau=%.3f, %d pruned), area=%.4f",
			s, len(g.pivots), g.diag.Solves, g.diag.Seeds, g.diag.Tau, g.diag.Pruned, g.diag.Area)
	}
	return b, nil
}

// grower holds the state of one side's growth loop. It is discarded once
// the side converges.
type grower struct {
	f    *Frame
	p    Params
	side Side

	ls     *LinearSystem
	coeff  []float64
	pivots []int

	// Candidates are addressed by position in pool. A candidate leaves
	// the active set when admitted or pruned and never returns.
	pool     []int
	px, py   []float64
	pz       []float64
	active   []bool
	nActive  int
	eligible int

	tau0, tau float64
	diag      GrowthDiagnostics
}

func newGrower(f *Frame, p Params, s Side, cls *Classification) *grower {
	pool := cls.Pools[s]
	px, py, pz := f.gather(pool)
	active := make([]bool, len(pool))
	for i := range active {
		active[i] = true
	}

	seeds := cls.Seeds[s]
	if len(seeds) > p.N0 {
		seeds = seeds[:p.N0]
	}
	return &grower{
		f:        f,
		p:        p,
		side:     s,
		ls:       NewLinearSystem(p.QM, f.Cell, p.Phi),
		pivots:   append(make([]int, 0, p.N0), seeds...),
		pool:     pool,
		px:       px,
		py:       py,
		pz:       pz,
		active:   active,
		nActive:  len(pool),
		eligible: cls.Eligible(s),
		tau0:     p.Tau(),
		tau:      p.Tau(),
	}
}

type pick struct {
	pos  int
	dist float64
}

func (g *grower) run() error {
	if g.eligible < g.p.N0 {
		return g.insufficient()
	}

	g.diag.Seeds = len(g.pivots)
	if err := g.admit(g.pivots); err != nil {
		return err
	}

	for len(g.pivots) < g.p.N0 {
		if g.nActive == 0 {
			return g.insufficient()
		}
		picks, err := g.selectCandidates()
		if err != nil {
			return err
		}

		sort.SliceStable(picks, func(i, j int) bool { return picks[i].dist < picks[j].dist })
		if room := g.p.N0 - len(g.pivots); len(picks) > room {
			picks = picks[:room]
		}
		batch := make([]int, len(picks))
		for i, pk := range picks {
			g.active[pk.pos] = false
			g.nActive--
			batch[i] = g.pool[pk.pos]
		}
		g.pivots = append(g.pivots, batch...)
		if err := g.admit(batch); err != nil {
			return err
		}
	}

	g.diag.Tau = g.tau
	g.diag.Area = NewSurface(g.coeff, g.p.QM, g.f.Cell).IntrinsicArea(g.p.QM)
	return nil
}

// selectCandidates evaluates the current surface once at every active
// candidate and relaxes tau until at least one lies within it. Candidates
// further than pruneFactor*tau are deactivated on every pass.
func (g *grower) selectCandidates() ([]pick, error) {
	pos := make([]int, 0, g.nActive)
	for i, ok := range g.active {
		if ok {
			pos = append(pos, i)
		}
	}
	x := make([]float64, len(pos))
	y := make([]float64, len(pos))
	for k, i := range pos {
		x[k], y[k] = g.px[i], g.py[i]
	}
	zeta := NewSurface(g.coeff, g.p.QM, g.f.Cell).Height(x, y, g.p.QM)
	dist := make([]float64, len(pos))
	for k, i := range pos {
		dist[k] = math.Abs(zeta[k] - g.pz[i])
	}

	for {
		var picks []pick
		for k, i := range pos {
			if !g.active[i] {
				continue
			}
			switch d := dist[k]; {
			case d <= g.tau:
				picks = append(picks, pick{pos: i, dist: d})
			case d > pruneFactor*g.tau:
				g.active[i] = false
				g.nActive--
				g.diag.Pruned++
			}
		}
		if len(picks) > 0 {
			return picks, nil
		}
		if g.nActive == 0 {
			return nil, g.insufficient()
		}
		g.tau += tauStep * g.tau0
		g.diag.Relaxations++
	}
}

// admit folds a batch of pivots into the system and re-solves.
func (g *grower) admit(batch []int) error {
	x, y, z := g.f.gather(batch)
	g.ls.Add(x, y, z)
	coeff, err := g.ls.Solve()
	if err != nil {
		return &SingularSystemError{
			Side:  g.side,
			Stage: "growth",
			Err:   fmt.Errorf("%d pivots: %w", g.ls.Rows(), err),
		}
	}
	g.coeff = coeff
	g.diag.Solves++
	return nil
}

func (g *grower) insufficient() error {
	return &InsufficientDataError{Side: g.side, Eligible: g.eligible, Required: g.p.N0}
}
