package engine

import (
	"fmt"
	"io"
	"strings"

	"rlframework/game"
)

type textRenderer struct {
	w io.Writer
}

// NewTextRenderer prints one line per committed turn.
func NewTextRenderer(w io.Writer) Renderer {
	return &textRenderer{w: w}
}

func (r *textRenderer) Render(s *game.Snapshot) {
	var b strings.Builder
	fmt.Fprintf(&b, "turn %d", s.Turn)
	if len(s.History) > 0 {
		last := s.History[len(s.History)-1]
		fmt.Fprintf(&b, ": player %d %s", last.Player, last.Action)
	}
	fmt.Fprintf(&b, " | scores %v | finished %v", s.Scores, s.FinishOrder)
	if s.ToMove == game.NoPlayer {
		b.WriteString(" | game over")
	} else {
		fmt.Fprintf(&b, " | to move %d", s.ToMove)
	}
	fmt.Fprintln(r.w, b.String())
}
