package domain

import (
	"math"
	"sort"
	"time"
)

// Quality is the optional flag a data source attaches to a reading.
type Quality string

const (
	QualityGood    Quality = "good"
	QualitySuspect Quality = "suspect"
	QualityBad     Quality = "bad"
)

// Reading is one sample of one channel.
type Reading struct {
	Value   float64 `json:"value"`
	Quality Quality `json:"quality,omitempty"`
}

// Usable reports whether the reading carries a value the evaluator can classify.
func (r Reading) Usable() bool {
	if r.Quality == QualityBad {
		return false
	}
	return !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0)
}

// Recorded returns the value to record on an event: the reading's value when
// it is finite, zero otherwise.
func (r Reading) Recorded() float64 {
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return 0
	}
	return r.Value
}

// Missing returns a reading that always classifies as Invalid.
func Missing() Reading {
	return Reading{Value: math.NaN(), Quality: QualityBad}
}

// Frame holds every reading that shares one timestamp.
type Frame struct {
	Timestamp time.Time          `json:"timestamp"`
	Readings  map[string]Reading `json:"readings"`
}

// Channels returns the channel ids present in the frame in lexical order.
func (f Frame) Channels() []string {
	ids := make([]string, 0, len(f.Readings))
	for id := range f.Readings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Classification is the ephemeral result of evaluating one reading.
type Classification struct {
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
	Tier      Tier      `json:"tier"`
	Side      Side      `json:"side,omitempty"`
	Value     float64   `json:"value"`
}

// ReferenceReading is an auxiliary environmental value fetched once per run,
// such as the 24-hour pollutant standards index.
type ReferenceReading struct {
	Metric    string    `json:"metric"`
	Region    string    `json:"region"`
	Value     float64   `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}
