package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"rlframework/engine"
)

const (
	sampleRow = "s"
	labelRow  = "l"
)

// Dir writes one CSV shard per game into a directory. Sample rows are
// `s,turn,player,v...`, label rows `l,player,target`.
type Dir struct {
	path string
}

func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}
	return &Dir{path: path}, nil
}

func (d *Dir) Path() string {
	return d.path
}

func (d *Dir) Open(game int) (engine.Recorder, error) {
	file, err := os.Create(filepath.Join(d.path, fmt.Sprintf("game_%06d.csv", game)))
	if err != nil {
		return nil, fmt.Errorf("failed to create shard: %w", err)
	}
	return &shard{file: file, csv: csv.NewWriter(file)}, nil
}

type shard struct {
	file *os.File
	csv  *csv.Writer
}

func (s *shard) Record(sample engine.Sample) error {
	row := append([]string{sampleRow, strconv.Itoa(sample.Turn), strconv.Itoa(sample.Player)}, formatFloats(sample.Vector)...)
	return s.write(row)
}

func (s *shard) Label(targets []float64) error {
	for pid, target := range formatFloats(targets) {
		if err := s.write([]string{labelRow, strconv.Itoa(pid), target}); err != nil {
			return err
		}
	}
	return nil
}

// Rows are flushed one by one so a failing game keeps what it recorded.
func (s *shard) write(row []string) error {
	if err := s.csv.Write(row); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	s.csv.Flush()
	return s.csv.Error()
}

func (s *shard) Close() error {
	s.csv.Flush()
	return errors.Join(s.csv.Error(), s.file.Close())
}

// Merge writes `v...,target` rows for every labelled shard in game order.
// Shards without labels are counted but contribute no rows.
func (d *Dir) Merge(w io.Writer) (MergeStats, error) {
	var stats MergeStats
	paths, err := filepath.Glob(filepath.Join(d.path, "game_*.csv"))
	if err != nil {
		return stats, fmt.Errorf("failed to list shards: %w", err)
	}
	sort.Strings(paths)

	out := csv.NewWriter(w)
	for _, path := range paths {
		stats.Shards++
		samples, targets, err := readShard(path)
		if err != nil {
			return stats, err
		}
		if targets == nil {
			stats.Unlabelled++
			continue
		}
		stats.Labelled++
		for _, sample := range samples {
			player, err := strconv.Atoi(sample[2])
			if err != nil || player < 0 || player >= len(targets) {
				return stats, fmt.Errorf("shard %s: bad player %q", path, sample[2])
			}
			if err := out.Write(append(sample[3:], targets[player])); err != nil {
				return stats, fmt.Errorf("failed to write dataset row: %w", err)
			}
			stats.Rows++
		}
	}
	out.Flush()
	return stats, out.Error()
}

func readShard(path string) ([][]string, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open shard: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read shard %s: %w", path, err)
	}

	var samples [][]string
	var labels [][]string
	for _, row := range rows {
		switch {
		case row[0] == sampleRow && len(row) >= 3:
			samples = append(samples, row)
		case row[0] == labelRow && len(row) == 3:
			labels = append(labels, row)
		default:
			return nil, nil, fmt.Errorf("shard %s: malformed row %v", path, row)
		}
	}
	if len(labels) == 0 {
		return samples, nil, nil
	}

	targets := make([]string, len(labels))
	for _, label := range labels {
		pid, err := strconv.Atoi(label[1])
		if err != nil || pid < 0 || pid >= len(targets) {
			return nil, nil, fmt.Errorf("shard %s: bad label %v", path, label)
		}
		targets[pid] = label[2]
	}
	return samples, targets, nil
}
