package metrics

import (
	"time"
)

type DecisionMetric struct {
	Duration     time.Duration
	LegalActions int // Before the max-moves cap
	Speculative  int // Speculative applies, i.e. candidates evaluated
}

type MoveMetric struct {
	Step   int
	Player int // Player ID
	Action string
	DecisionMetric
}

// Collector tracks one decision at a time. A game is single-threaded so
// collectors need no synchronisation.
type Collector interface {
	Start()
	SetLegalActions(n int)
	AddSpeculative()
	Complete() DecisionMetric
}

type collector struct {
	startTime   time.Time
	legal       int
	speculative int
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) Start() {
	m.startTime = time.Now()
	m.legal = 0
	m.speculative = 0
}

func (m *collector) SetLegalActions(n int) {
	m.legal = n
}

func (m *collector) AddSpeculative() {
	m.speculative++
}

func (m *collector) Complete() DecisionMetric {
	return DecisionMetric{
		Duration:     time.Since(m.startTime),
		LegalActions: m.legal,
		Speculative:  m.speculative,
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start()                   {}
func (m *dummyCollector) SetLegalActions(n int)    {}
func (m *dummyCollector) AddSpeculative()          {}
func (m *dummyCollector) Complete() DecisionMetric { return DecisionMetric{} }
