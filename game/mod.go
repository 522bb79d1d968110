package game

// NoPerspective marks a snapshot drawn without masking, i.e. the authoritative state.
const NoPerspective = -1

// NoPlayer is the to-move value of a terminal state.
const NoPlayer = -1

type StateHash uint64

// Payload is the game-specific part of a snapshot (board, hands, deck, ...).
// Implementations must own all of their data: Copy and Mask return values that
// share no mutable memory with the receiver.
type Payload interface {
	Copy() Payload
	Equal(other Payload) bool
	// Mask returns a copy with everything the perspective player cannot observe hidden.
	Mask(perspective int) Payload
	// Vector is a deterministic fixed-length encoding from the given perspective.
	Vector(perspective int) []float64
}

// Evaluates a snapshot to a real-valued score from the perspective player's
// point of view. Higher is better for that player.
type Evaluate func(s *Snapshot, perspective int) float64

// Turn is one entry of the bounded turn history.
type Turn struct {
	Number int
	Player int
	Action string
}
