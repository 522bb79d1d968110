package metrics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type GameRecord struct {
	ID          int
	Seed        uint64
	Players     []string
	Scores      []float64
	FinishOrder []int
	Winner      int // -1 on a tie or a failure
	Tie         bool
	Turns       int
	Duration    time.Duration
	Failure     string // Failure kind, empty on success
	Blame       int    // Player slot blamed for the failure, -1 if none
	Error       string
}

// Writer appends game and move records to CSV files as they arrive. It is
// meant to be driven by a single goroutine.
type Writer struct {
	baseDir  string
	games    *os.File
	gamesCSV *csv.Writer
	moves    *os.File
	movesCSV *csv.Writer
}

func NewWriter(baseDir string) (*Writer, error) {
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	games, err := os.Create(filepath.Join(baseDir, "game_records.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to create game records file: %w", err)
	}
	moves, err := os.Create(filepath.Join(baseDir, "move_records.csv"))
	if err != nil {
		games.Close()
		return nil, fmt.Errorf("failed to create move records file: %w", err)
	}

	w := &Writer{
		baseDir:  baseDir,
		games:    games,
		gamesCSV: csv.NewWriter(games),
		moves:    moves,
		movesCSV: csv.NewWriter(moves),
	}

	header := []string{"id", "seed", "players", "scores", "finish_order", "winner", "tie", "turns", "duration", "failure", "blame", "error"}
	if err := w.write(w.gamesCSV, header); err != nil {
		return nil, fmt.Errorf("failed to write game records header: %w", err)
	}
	header = []string{"game", "step", "player", "action", "duration", "legal_actions", "speculative"}
	if err := w.write(w.movesCSV, header); err != nil {
		return nil, fmt.Errorf("failed to write move records header: %w", err)
	}
	return w, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) WriteGame(record GameRecord) error {
	scores := make([]string, len(record.Scores))
	for i, s := range record.Scores {
		scores[i] = strconv.FormatFloat(s, 'g', -1, 64)
	}
	order := make([]string, len(record.FinishOrder))
	for i, pid := range record.FinishOrder {
		order[i] = strconv.Itoa(pid)
	}

	row := []string{
		strconv.Itoa(record.ID),
		strconv.FormatUint(record.Seed, 10),
		strings.Join(record.Players, ";"),
		strings.Join(scores, ";"),
		strings.Join(order, ";"),
		strconv.Itoa(record.Winner),
		strconv.FormatBool(record.Tie),
		strconv.Itoa(record.Turns),
		record.Duration.String(),
		record.Failure,
		strconv.Itoa(record.Blame),
		record.Error,
	}
	if err := w.write(w.gamesCSV, row); err != nil {
		return fmt.Errorf("failed to write game record row: %w", err)
	}
	return nil
}

func (w *Writer) WriteMoves(game int, moves []MoveMetric) error {
	for _, move := range moves {
		row := []string{
			strconv.Itoa(game),
			strconv.Itoa(move.Step),
			strconv.Itoa(move.Player),
			move.Action,
			move.Duration.String(),
			strconv.Itoa(move.LegalActions),
			strconv.Itoa(move.Speculative),
		}
		if err := w.movesCSV.Write(row); err != nil {
			return fmt.Errorf("failed to write move record row: %w", err)
		}
	}
	w.movesCSV.Flush()
	return w.movesCSV.Error()
}

func (w *Writer) write(writer *csv.Writer, row []string) error {
	if err := writer.Write(row); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func (w *Writer) Close() error {
	w.gamesCSV.Flush()
	w.movesCSV.Flush()
	return errors.Join(w.gamesCSV.Error(), w.movesCSV.Error(), w.games.Close(), w.moves.Close())
}
