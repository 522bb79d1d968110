// Package skate is a perfect-information area battle on an N×N board of
// valued cells. A skater slides in a straight line, painting every cell it
// crosses and leaving a rock where it started. A skater with nowhere to go is
// finished; the painted value is the score.
package skate

import (
	"fmt"
	"slices"

	"rlframework/engine"
	"rlframework/game"

	"golang.org/x/exp/rand"
)

const (
	DefaultSize = 8
	MaxValue    = 100
)

var directions = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

type Option func(r *Rules)

type Rules struct {
	size int
}

func WithSize(size int) Option {
	return func(r *Rules) {
		if size > 1 {
			r.size = size
		}
	}
}

func New(options ...Option) *Rules {
	r := &Rules{size: DefaultSize}
	for _, option := range options {
		option(r)
	}
	return r
}

// Board holds cell values, paint and rocks for two skaters.
type Board struct {
	N     int
	Value [][]int
	Owner [][]int // game.NoPlayer when unpainted
	Rock  [][]bool
	Px    [2]int
	Py    [2]int
	First int
}

func (b *Board) Copy() game.Payload {
	val := make([][]int, b.N)
	own := make([][]int, b.N)
	rock := make([][]bool, b.N)
	for y := 0; y < b.N; y++ {
		val[y] = slices.Clone(b.Value[y])
		own[y] = slices.Clone(b.Owner[y])
		rock[y] = slices.Clone(b.Rock[y])
	}
	return &Board{N: b.N, Value: val, Owner: own, Rock: rock, Px: b.Px, Py: b.Py, First: b.First}
}

func (b *Board) Equal(other game.Payload) bool {
	o, ok := other.(*Board)
	if !ok || b.N != o.N || b.Px != o.Px || b.Py != o.Py || b.First != o.First {
		return false
	}
	for y := 0; y < b.N; y++ {
		if !slices.Equal(b.Value[y], o.Value[y]) || !slices.Equal(b.Owner[y], o.Owner[y]) || !slices.Equal(b.Rock[y], o.Rock[y]) {
			return false
		}
	}
	return true
}

func (b *Board) Mask(perspective int) game.Payload {
	return b.Copy()
}

// Vector encodes per cell the value, the paint relative to the perspective
// player and rocks, followed by both positions, own first.
func (b *Board) Vector(perspective int) []float64 {
	me := max(perspective, 0)
	vec := make([]float64, 0, 3*b.N*b.N+4)
	for y := 0; y < b.N; y++ {
		for x := 0; x < b.N; x++ {
			paint := 0.0
			switch b.Owner[y][x] {
			case me:
				paint = 1
			case 1 - me:
				paint = -1
			}
			rock := 0.0
			if b.Rock[y][x] {
				rock = 1
			}
			vec = append(vec, float64(b.Value[y][x])/MaxValue, paint, rock)
		}
	}
	scale := float64(b.N - 1)
	return append(vec, float64(b.Px[me])/scale, float64(b.Py[me])/scale, float64(b.Px[1-me])/scale, float64(b.Py[1-me])/scale)
}

func (b *Board) blocked(x, y, opponent int) bool {
	return x < 0 || x >= b.N || y < 0 || y >= b.N || b.Rock[y][x] || (x == b.Px[opponent] && y == b.Py[opponent])
}

// Slide moves a skater from its position to (ToX, ToY).
type Slide struct {
	Player int
	ToX    int
	ToY    int
}

func (a Slide) IsLegal(e *engine.Engine) bool {
	b := e.Payload().(*Board)
	if e.ToMove() != a.Player {
		return false
	}
	x0, y0 := b.Px[a.Player], b.Py[a.Player]
	dx, dy := sign(a.ToX-x0), sign(a.ToY-y0)
	if (dx == 0) == (dy == 0) {
		return false // Not a straight line
	}
	for x, y := x0+dx, y0+dy; ; x, y = x+dx, y+dy {
		if b.blocked(x, y, 1-a.Player) {
			return false
		}
		if x == a.ToX && y == a.ToY {
			return true
		}
	}
}

func (a Slide) Modify(e *engine.Engine) error {
	b := e.Payload().(*Board)
	p := a.Player
	x0, y0 := b.Px[p], b.Py[p]
	b.Rock[y0][x0] = true
	dx, dy := sign(a.ToX-x0), sign(a.ToY-y0)
	x, y := x0, y0
	for {
		x += dx
		y += dy
		b.Owner[y][x] = p
		if x == a.ToX && y == a.ToY {
			break
		}
	}
	b.Px[p], b.Py[p] = a.ToX, a.ToY
	return nil
}

func (a Slide) String() string {
	return fmt.Sprintf("slide to (%d,%d)", a.ToX, a.ToY)
}

func sign(d int) int {
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	default:
		return 0
	}
}

func (r *Rules) Name() string {
	return "skate"
}

func (r *Rules) NumPlayers() int {
	return 2
}

// Setup draws random values and mirrored start positions.
func (r *Rules) Setup(rng *rand.Rand) (game.Payload, error) {
	n := r.size
	b := &Board{N: n, Value: make([][]int, n), Owner: make([][]int, n), Rock: make([][]bool, n)}
	for y := 0; y < n; y++ {
		b.Value[y] = make([]int, n)
		b.Owner[y] = make([]int, n)
		b.Rock[y] = make([]bool, n)
		for x := 0; x < n; x++ {
			b.Value[y][x] = rng.Intn(MaxValue + 1)
			b.Owner[y][x] = game.NoPlayer
		}
	}
	x, y := rng.Intn(n), rng.Intn(n)
	if x == n-1-x && y == n-1-y {
		x, y = 0, 0 // The centre of an odd board mirrors onto itself
	}
	b.Px[0], b.Py[0] = x, y
	b.Px[1], b.Py[1] = n-1-x, n-1-y
	b.First = rng.Intn(2)
	return b, nil
}

func (r *Rules) StartingPlayer(e *engine.Engine) int {
	return e.Payload().(*Board).First
}

func (r *Rules) LegalActions(e *engine.Engine, pid int) []engine.Action {
	b := e.Payload().(*Board)
	x0, y0 := b.Px[pid], b.Py[pid]
	var actions []engine.Action
	for _, d := range directions {
		for step := 1; step < b.N; step++ {
			x, y := x0+d[0]*step, y0+d[1]*step
			if b.blocked(x, y, 1-pid) {
				break
			}
			actions = append(actions, Slide{Player: pid, ToX: x, ToY: y})
		}
	}
	return actions
}

func (r *Rules) IsFinished(e *engine.Engine, pid int) bool {
	b := e.Payload().(*Board)
	x, y := b.Px[pid], b.Py[pid]
	for _, d := range directions {
		if !b.blocked(x+d[0], y+d[1], 1-pid) {
			return false
		}
	}
	return true
}

func (r *Rules) IsTerminal(e *engine.Engine) bool {
	return len(e.Unfinished()) == 0
}

func (r *Rules) NextPlayer(e *engine.Engine) int {
	return engine.NextUnfinished(e)
}

func (r *Rules) Scores(e *engine.Engine) []float64 {
	b := e.Payload().(*Board)
	scores := make([]float64, 2)
	for y := 0; y < b.N; y++ {
		for x := 0; x < b.N; x++ {
			if owner := b.Owner[y][x]; owner != game.NoPlayer {
				scores[owner] += float64(b.Value[y][x])
			}
		}
	}
	return scores
}
