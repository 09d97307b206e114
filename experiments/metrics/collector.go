package metrics

import (
	"time"
)

type SearchMetric struct {
	Duration   time.Duration
	Episodes   int
	NodesAdded int
	TreeReused bool
}

type MoveMetric struct {
	Step     int
	Side     string
	Move     string
	WinRate  float64
	SimCount int
	SearchMetric
}

type GameMetric struct {
	EngineSide string
	Outcome    string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalMoves int
}

// Collector gathers statistics for a single search call. Search runs on one
// goroutine so no synchronisation is needed.
type Collector interface {
	Start()
	SetTreeReused(value bool)
	AddEpisode()
	AddNode()
	Complete() SearchMetric
}

type collector struct {
	startTime  time.Time
	episodes   int
	nodesAdded int
	treeReused bool
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) Start() {
	m.startTime = time.Now()
	m.episodes = 0
	m.nodesAdded = 0
}

func (m *collector) SetTreeReused(value bool) {
	m.treeReused = value
}

func (m *collector) AddEpisode() {
	m.episodes++
}

func (m *collector) AddNode() {
	m.nodesAdded++
}

func (m *collector) Complete() SearchMetric {
	metric := SearchMetric{
		Duration:   time.Since(m.startTime),
		Episodes:   m.episodes,
		NodesAdded: m.nodesAdded,
		TreeReused: m.treeReused,
	}
	m.treeReused = false
	return metric
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start()                   {}
func (m *dummyCollector) SetTreeReused(value bool) {}
func (m *dummyCollector) AddEpisode()              {}
func (m *dummyCollector) AddNode()                 {}
func (m *dummyCollector) Complete() SearchMetric   { return SearchMetric{} }
