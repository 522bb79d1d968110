package game

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"slices"
)

// Snapshot is everything needed to reconstruct a game exactly, as seen from
// one player's perspective. Snapshots are never mutated after construction;
// a new state is always a new snapshot.
type Snapshot struct {
	Unfinished  []int     // Players still playing, ascending
	FinishOrder []int     // Players who completed the game, in completion order
	Scores      []float64 // Indexed by player ID
	Perspective int       // NoPerspective for the authoritative state
	ToMove      int       // NoPlayer once the game is over
	Turn        int       // Number of committed actions so far
	History     []Turn    // Bounded, oldest first
	Payload     Payload
}

// NewSnapshot validates s and returns an independently owned copy of it.
func NewSnapshot(s Snapshot) (*Snapshot, error) {
	n := len(s.Scores)
	if n == 0 {
		return nil, fmt.Errorf("snapshot: scores are required")
	}
	if s.Payload == nil {
		return nil, fmt.Errorf("snapshot: payload is required")
	}
	if s.Perspective != NoPerspective && (s.Perspective < 0 || s.Perspective >= n) {
		return nil, fmt.Errorf("snapshot: perspective %d out of range", s.Perspective)
	}

	seen := make([]bool, n)
	for _, ids := range [][]int{s.Unfinished, s.FinishOrder} {
		for _, pid := range ids {
			if pid < 0 || pid >= n {
				return nil, fmt.Errorf("snapshot: player %d out of range", pid)
			}
			if seen[pid] {
				return nil, fmt.Errorf("snapshot: player %d listed twice", pid)
			}
			seen[pid] = true
		}
	}
	if len(s.Unfinished)+len(s.FinishOrder) != n {
		return nil, fmt.Errorf("snapshot: %d players are neither unfinished nor finished", n-len(s.Unfinished)-len(s.FinishOrder))
	}

	if s.Turn < 0 {
		return nil, fmt.Errorf("snapshot: negative turn %d", s.Turn)
	}
	if s.ToMove != NoPlayer && !slices.Contains(s.Unfinished, s.ToMove) {
		return nil, fmt.Errorf("snapshot: player to move %d is not unfinished", s.ToMove)
	}

	return s.Copy(), nil
}

// Copy returns a deep copy that shares no mutable memory with s.
func (s *Snapshot) Copy() *Snapshot {
	var payload Payload
	if s.Payload != nil {
		payload = s.Payload.Copy()
	}
	return &Snapshot{
		Unfinished:  cloneInts(s.Unfinished),
		FinishOrder: cloneInts(s.FinishOrder),
		Scores:      slices.Clone(s.Scores),
		Perspective: s.Perspective,
		ToMove:      s.ToMove,
		Turn:        s.Turn,
		History:     slices.Clone(s.History),
		Payload:     payload,
	}
}

func cloneInts(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return slices.Clone(ids)
}

// Equal compares every attribute, the payload included.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Perspective != other.Perspective || s.ToMove != other.ToMove || s.Turn != other.Turn {
		return false
	}
	if !slices.Equal(s.Unfinished, other.Unfinished) ||
		!slices.Equal(s.FinishOrder, other.FinishOrder) ||
		!slices.Equal(s.Scores, other.Scores) ||
		!slices.Equal(s.History, other.History) {
		return false
	}
	if s.Payload == nil || other.Payload == nil {
		return s.Payload == nil && other.Payload == nil
	}
	return s.Payload.Equal(other.Payload)
}

func (s *Snapshot) NumPlayers() int {
	return len(s.Scores)
}

func (s *Snapshot) IsFinished(pid int) bool {
	return slices.Contains(s.FinishOrder, pid)
}

// Rank returns the 1-based finishing position of pid, or 0 if unfinished.
func (s *Snapshot) Rank(pid int) int {
	return slices.Index(s.FinishOrder, pid) + 1
}

// Vector encodes the snapshot as a fixed-length vector:
// per player [unfinished, rank/n, score], one-hot player to move,
// one-hot perspective, then the payload encoding.
// NoPerspective encodes from the snapshot's own perspective.
func (s *Snapshot) Vector(perspective int) []float64 {
	if perspective == NoPerspective {
		perspective = s.Perspective
	}
	n := s.NumPlayers()
	payload := s.Payload.Vector(perspective)
	vec := make([]float64, 0, 5*n+len(payload))

	for pid := 0; pid < n; pid++ {
		unfinished := 0.0
		if slices.Contains(s.Unfinished, pid) {
			unfinished = 1
		}
		vec = append(vec, unfinished, float64(s.Rank(pid))/float64(n), s.Scores[pid])
	}
	vec = append(vec, oneHot(s.ToMove, n)...)
	vec = append(vec, oneHot(perspective, n)...)
	return append(vec, payload...)
}

func oneHot(index, n int) []float64 {
	vec := make([]float64, n)
	if index >= 0 && index < n {
		vec[index] = 1
	}
	return vec
}

// Hash is derived from the vector encoding, so value-equal snapshots hash equally.
func (s *Snapshot) Hash() StateHash {
	hasher := fnv.New64a()
	buf := make([]byte, 8)
	for _, v := range s.Vector(NoPerspective) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		hasher.Write(buf)
	}
	return StateHash(hasher.Sum64())
}
