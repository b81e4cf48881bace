package config

import (
	"time"

	"github.com/aretw0/iaqflow/pkg/domain"
)

// PersistenceMode selects how an alert is confirmed and cleared.
type PersistenceMode string

const (
	ModeCount    PersistenceMode = "count"
	ModeDuration PersistenceMode = "duration"
)

// ReorderPolicy decides what happens to a frame older than its predecessor.
type ReorderPolicy string

const (
	ReorderReject ReorderPolicy = "reject"
	ReorderSort   ReorderPolicy = "sort"
)

// Config is the whole configuration document.
type Config struct {
	Run       RunSettings       `mapstructure:"run" json:"run"`
	Reference ReferenceSettings `mapstructure:"reference" json:"reference"`
	Columns   ColumnSettings    `mapstructure:"columns" json:"columns"`
	Channels  []Channel         `mapstructure:"channels" json:"channels"`
	Zones     *ZoneTemplate     `mapstructure:"zones" json:"zones,omitempty"`
	Cycles    map[string]Cycle  `mapstructure:"cycles" json:"cycles"`
	Outputs   OutputSettings    `mapstructure:"outputs" json:"outputs"`
	Store     StoreSettings     `mapstructure:"store" json:"store"`

	index map[string]int
}

// RunSettings control the orchestrator.
type RunSettings struct {
	Reorder     ReorderPolicy `mapstructure:"reorder" json:"reorder"`
	MaxGap      time.Duration `mapstructure:"max_gap" json:"max_gap"`
	Parallelism int           `mapstructure:"parallelism" json:"parallelism"`
}

// ReferenceSettings configure auxiliary data fetched once per run.
type ReferenceSettings struct {
	PSI *PSISettings `mapstructure:"psi" json:"psi,omitempty"`
}

// PSISettings configure the haze (pollutant standards index) check.
type PSISettings struct {
	URL              string        `mapstructure:"url" json:"url"`
	Region           string        `mapstructure:"region" json:"region"`
	Metric           string        `mapstructure:"metric" json:"metric"`
	UnhealthyMin     float64       `mapstructure:"unhealthy_min" json:"unhealthy_min"`
	UnhealthyMax     float64       `mapstructure:"unhealthy_max" json:"unhealthy_max"`
	VeryUnhealthyMin float64       `mapstructure:"very_unhealthy_min" json:"very_unhealthy_min"`
	Timeout          time.Duration `mapstructure:"timeout" json:"timeout"`
}

// ColumnSettings describe how wide sensor tables map onto channels.
type ColumnSettings struct {
	// Pattern must expose the named groups "zone" and "metric".
	Pattern   string `mapstructure:"pattern" json:"pattern"`
	Timestamp string `mapstructure:"timestamp" json:"timestamp"`
	Layout    string `mapstructure:"layout" json:"layout"`
}

// Channel is one monitored measurement series.
type Channel struct {
	ID           string      `mapstructure:"id" json:"id"`
	Zone         string      `mapstructure:"zone" json:"zone"`
	Metric       string      `mapstructure:"metric" json:"metric"`
	Unit         string      `mapstructure:"unit" json:"unit"`
	RelativeTo   string      `mapstructure:"relative_to" json:"relative_to,omitempty"`
	MinAlertTier domain.Tier `mapstructure:"min_alert_tier" json:"min_alert_tier"`
	Thresholds   []Threshold `mapstructure:"thresholds" json:"thresholds"`
	Normal       *Band       `mapstructure:"normal" json:"normal,omitempty"`
	Persistence  Persistence `mapstructure:"persistence" json:"persistence"`
	Routes       []Route     `mapstructure:"routes" json:"routes"`
	MaxCycles    int         `mapstructure:"max_cycles" json:"max_cycles"`
}

// Threshold is the pair of bounds that defines one alert tier.
type Threshold struct {
	Tier domain.Tier `mapstructure:"tier" json:"tier"`
	High *float64    `mapstructure:"high" json:"high,omitempty"`
	Low  *float64    `mapstructure:"low" json:"low,omitempty"`
}

// Band is an inclusive range. Nil ends are open.
type Band struct {
	High *float64 `mapstructure:"high" json:"high,omitempty"`
	Low  *float64 `mapstructure:"low" json:"low,omitempty"`
}

// Contains reports whether v lies inside the band.
func (b Band) Contains(v float64) bool {
	if b.High != nil && v > *b.High {
		return false
	}
	if b.Low != nil && v < *b.Low {
		return false
	}
	return true
}

// Persistence configures the debounce of one channel.
type Persistence struct {
	Mode         PersistenceMode `mapstructure:"mode" json:"mode"`
	Confirm      int             `mapstructure:"confirm" json:"confirm"`
	Clear        int             `mapstructure:"clear" json:"clear"`
	ConfirmAfter time.Duration   `mapstructure:"confirm_after" json:"confirm_after"`
	ClearAfter   time.Duration   `mapstructure:"clear_after" json:"clear_after"`
}

// Route binds an alert (tier, side) to a cycle. Empty fields match anything.
type Route struct {
	Tier  domain.Tier `mapstructure:"tier" json:"tier"`
	Side  domain.Side `mapstructure:"side" json:"side,omitempty"`
	Cycle string      `mapstructure:"cycle" json:"cycle"`
}

// Matches reports whether the route applies to the given alert.
func (r Route) Matches(tier domain.Tier, side domain.Side) bool {
	if r.Tier != domain.TierInvalid && r.Tier != tier {
		return false
	}
	if r.Side != domain.SideNone && r.Side != side {
		return false
	}
	return true
}

// ZoneTemplate stamps the same channel definitions onto many zones.
type ZoneTemplate struct {
	Names   []string  `mapstructure:"names" json:"names"`
	Metrics []Channel `mapstructure:"metrics" json:"metrics"`
}

// Cycle is a named, staged corrective action sequence.
type Cycle struct {
	Cooldown time.Duration `mapstructure:"cooldown" json:"cooldown"`
	Stages   []Stage       `mapstructure:"stages" json:"stages"`
}

// Stage is one step of a cycle. Actions are recorded, never executed.
type Stage struct {
	Name     string         `mapstructure:"name" json:"name"`
	Duration time.Duration  `mapstructure:"duration" json:"duration"`
	Action   string         `mapstructure:"action" json:"action"`
	Params   map[string]any `mapstructure:"params" json:"params,omitempty"`
}

// OutputSettings select the report writers of the CLI.
type OutputSettings struct {
	Directory string            `mapstructure:"directory" json:"directory"`
	Formats   []string          `mapstructure:"formats" json:"formats"`
	Postgres  *PostgresSettings `mapstructure:"postgres" json:"postgres,omitempty"`
	Kafka     *KafkaSettings    `mapstructure:"kafka" json:"kafka,omitempty"`
}

type PostgresSettings struct {
	DSN string `mapstructure:"dsn" json:"dsn"`
}

type KafkaSettings struct {
	Brokers []string `mapstructure:"brokers" json:"brokers"`
	Topic   string   `mapstructure:"topic" json:"topic"`
}

// StoreSettings select where the HTTP server keeps finished runs.
type StoreSettings struct {
	Redis *RedisSettings `mapstructure:"redis" json:"redis,omitempty"`
}

type RedisSettings struct {
	Addr     string        `mapstructure:"addr" json:"addr"`
	Password string        `mapstructure:"password" json:"password"`
	DB       int           `mapstructure:"db" json:"db"`
	Prefix   string        `mapstructure:"prefix" json:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" json:"ttl"`
}

// Channel returns the configuration of a channel by id.
func (c *Config) Channel(id string) (*Channel, bool) {
	if c.index == nil {
		c.reindex()
	}
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return &c.Channels[i], true
}

// ChannelIDs returns the configured channel ids in document order.
func (c *Config) ChannelIDs() []string {
	ids := make([]string, len(c.Channels))
	for i, ch := range c.Channels {
		ids[i] = ch.ID
	}
	return ids
}

func (c *Config) reindex() {
	c.index = make(map[string]int, len(c.Channels))
	for i, ch := range c.Channels {
		c.index[ch.ID] = i
	}
}

// CycleFor resolves the cycle bound to an alert. The first matching route wins.
func (ch *Channel) CycleFor(tier domain.Tier, side domain.Side) (string, bool) {
	for _, r := range ch.Routes {
		if r.Matches(tier, side) {
			return r.Cycle, true
		}
	}
	return "", false
}

// Stage returns stage i of the cycle, if any.
func (cy Cycle) Stage(i int) (Stage, bool) {
	if i < 0 || i >= len(cy.Stages) {
		return Stage{}, false
	}
	return cy.Stages[i], true
}
