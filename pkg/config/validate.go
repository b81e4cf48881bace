package config

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/aretw0/iaqflow/pkg/domain"
)

// Validate checks the semantic rules a schema cannot express.
// It returns an *AggregateError listing every problem found.
func (c *Config) Validate() error {
	c.reindex()
	var p problems

	switch c.Run.Reorder {
	case ReorderReject, ReorderSort:
	default:
		p.add("run.reorder", "unknown reorder policy %q", c.Run.Reorder)
	}
	if c.Run.MaxGap < 0 {
		p.add("run.max_gap", "must not be negative")
	}
	if c.Run.Parallelism < 0 {
		p.add("run.parallelism", "must not be negative")
	}

	if c.Columns.Pattern != "" {
		re, err := regexp.Compile(c.Columns.Pattern)
		switch {
		case err != nil:
			p.add("columns.pattern", "invalid expression: %v", err)
		case re.SubexpIndex("zone") < 0 || re.SubexpIndex("metric") < 0:
			p.add("columns.pattern", "must define the named groups zone and metric")
		}
	}

	if psi := c.Reference.PSI; psi != nil {
		if psi.URL == "" {
			p.add("reference.psi.url", "required")
		}
		if psi.UnhealthyMax > 0 && psi.UnhealthyMin > psi.UnhealthyMax {
			p.add("reference.psi", "unhealthy_min is above unhealthy_max")
		}
	}

	for _, name := range c.CycleNames() {
		c.validateCycle(name, c.Cycles[name], &p)
	}

	if len(c.Channels) == 0 {
		p.add("channels", "at least one channel is required")
	}
	seen := make(map[string]bool, len(c.Channels))
	for i := range c.Channels {
		ch := &c.Channels[i]
		field := fmt.Sprintf("channels[%d]", i)
		if ch.ID == "" {
			p.add(field+".id", "required")
			continue
		}
		field = fmt.Sprintf("channels[%s]", ch.ID)
		if seen[ch.ID] {
			p.add(field, "duplicate channel id")
		}
		seen[ch.ID] = true
		c.validateChannel(field, ch, &p)
	}
	return p.err()
}

func (c *Config) validateCycle(name string, cy Cycle, p *problems) {
	field := fmt.Sprintf("cycles[%s]", name)
	if len(cy.Stages) == 0 {
		p.add(field+".stages", "a cycle needs at least one stage")
	}
	if cy.Cooldown < 0 {
		p.add(field+".cooldown", "must not be negative")
	}
	names := make(map[string]bool, len(cy.Stages))
	for i, st := range cy.Stages {
		sf := fmt.Sprintf("%s.stages[%d]", field, i)
		if st.Name == "" {
			p.add(sf+".name", "required")
		} else if names[st.Name] {
			p.add(sf+".name", "duplicate stage name %q", st.Name)
		}
		names[st.Name] = true
		if st.Duration <= 0 {
			p.add(sf+".duration", "stage duration must be positive, got %s", st.Duration)
		}
	}
}

func (c *Config) validateChannel(field string, ch *Channel, p *problems) {
	switch ch.Persistence.Mode {
	case ModeCount:
		if ch.Persistence.Confirm < 1 {
			p.add(field+".persistence.confirm", "must be at least 1")
		}
		if ch.Persistence.Clear < 1 {
			p.add(field+".persistence.clear", "must be at least 1")
		}
	case ModeDuration:
		if ch.Persistence.ConfirmAfter <= 0 {
			p.add(field+".persistence.confirm_after", "must be positive")
		}
		if ch.Persistence.ClearAfter <= 0 {
			p.add(field+".persistence.clear_after", "must be positive")
		}
	default:
		p.add(field+".persistence.mode", "unknown persistence mode %q", ch.Persistence.Mode)
	}

	if !isAlertTier(ch.MinAlertTier) {
		p.add(field+".min_alert_tier", "must be warning or critical, got %s", ch.MinAlertTier)
	}
	if ch.MaxCycles < 0 {
		p.add(field+".max_cycles", "must not be negative")
	}

	if ch.RelativeTo != "" {
		ref, ok := c.Channel(ch.RelativeTo)
		switch {
		case !ok:
			p.add(field+".relative_to", "unknown channel %q", ch.RelativeTo)
		case ref.ID == ch.ID:
			p.add(field+".relative_to", "a channel cannot be relative to itself")
		case ref.RelativeTo != "":
			p.add(field+".relative_to", "reference channel %q is itself relative", ref.ID)
		}
	}

	validateThresholds(field, ch, p)

	for i, r := range ch.Routes {
		if _, ok := c.Cycles[r.Cycle]; !ok {
			p.add(fmt.Sprintf("%s.routes[%d].cycle", field, i), "unknown cycle %q", r.Cycle)
		}
	}
	for _, th := range ch.Thresholds {
		if !th.Tier.Alertable(ch.MinAlertTier) {
			continue
		}
		for _, side := range confirmableSides(ch, th.Tier) {
			if _, ok := ch.CycleFor(th.Tier, side); !ok {
				p.add(field+".routes", "no cycle mapped for tier %s on the %s side", th.Tier, side)
			}
		}
	}
}

// confirmableSides lists the sides an alert at tier can be confirmed on.
// Samples above tier also feed its counter, so their sides count too.
func confirmableSides(ch *Channel, tier domain.Tier) []domain.Side {
	var high, low bool
	for _, th := range ch.Thresholds {
		if th.Tier < tier {
			continue
		}
		high = high || th.High != nil
		low = low || th.Low != nil
	}
	var sides []domain.Side
	if high {
		sides = append(sides, domain.SideHigh)
	}
	if low {
		sides = append(sides, domain.SideLow)
	}
	return sides
}

func validateThresholds(field string, ch *Channel, p *problems) {
	if len(ch.Thresholds) == 0 {
		p.add(field+".thresholds", "at least one threshold is required")
		return
	}
	byTier := make(map[domain.Tier]Threshold, len(ch.Thresholds))
	for i, th := range ch.Thresholds {
		tf := fmt.Sprintf("%s.thresholds[%d]", field, i)
		if !isAlertTier(th.Tier) {
			p.add(tf+".tier", "must be warning or critical, got %s", th.Tier)
			continue
		}
		if _, dup := byTier[th.Tier]; dup {
			p.add(tf+".tier", "duplicate tier %s", th.Tier)
		}
		if th.High == nil && th.Low == nil {
			p.add(tf, "needs a high or a low bound")
		}
		byTier[th.Tier] = th
	}

	warn, hasWarn := byTier[domain.TierWarning]
	crit, hasCrit := byTier[domain.TierCritical]
	if hasWarn && hasCrit {
		if warn.High != nil && crit.High != nil && *crit.High < *warn.High {
			p.add(field+".thresholds", "critical high bound %v is below warning high bound %v", *crit.High, *warn.High)
		}
		if warn.Low != nil && crit.Low != nil && *crit.Low > *warn.Low {
			p.add(field+".thresholds", "critical low bound %v is above warning low bound %v", *crit.Low, *warn.Low)
		}
	}

	if ch.Normal == nil {
		return
	}
	for _, th := range ch.Thresholds {
		if th.High != nil && ch.Normal.High != nil && *ch.Normal.High > *th.High {
			p.add(field+".normal.high", "normal band reaches into the %s bound", th.Tier)
		}
		if th.Low != nil && ch.Normal.Low != nil && *ch.Normal.Low < *th.Low {
			p.add(field+".normal.low", "normal band reaches into the %s bound", th.Tier)
		}
	}
}

func isAlertTier(t domain.Tier) bool {
	for _, at := range domain.AlertTiers {
		if t == at {
			return true
		}
	}
	return false
}

// CycleNames returns the configured cycle names in lexical order.
func (c *Config) CycleNames() []string {
	names := make([]string, 0, len(c.Cycles))
	for name := range c.Cycles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
