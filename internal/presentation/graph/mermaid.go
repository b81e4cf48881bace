package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
)

// GraphOverlay marks cycles on the diagram using the events of a run.
type GraphOverlay struct {
	Started   []string
	Exhausted []string
}

// OverlayFromReport collects the cycles a run started and exhausted.
func OverlayFromReport(report *domain.Report) *GraphOverlay {
	o := &GraphOverlay{}
	started, exhausted := map[string]bool{}, map[string]bool{}
	for _, ev := range report.Events {
		switch ev.Kind {
		case domain.EventCycleStarted:
			if !started[ev.Cycle] {
				started[ev.Cycle] = true
				o.Started = append(o.Started, ev.Cycle)
			}
		case domain.EventCycleExhausted:
			if !exhausted[ev.Cycle] {
				exhausted[ev.Cycle] = true
				o.Exhausted = append(o.Exhausted, ev.Cycle)
			}
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid stateDiagram-v2 of the configured cycles.
// Each cycle is a composite state holding its stages in order; the edge from
// idle lists the channels routed to it. Cycles with a cooldown get their own
// cooldown state with the restart edge.
func GenerateMermaid(cfg *config.Config, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	sb.WriteString("    [*] --> idle\n")

	routed := routesByCycle(cfg)
	for _, name := range cfg.CycleNames() {
		cycle := cfg.Cycles[name]
		id := sanitizeMermaidID(name)

		fmt.Fprintf(&sb, "    state \"%s\" as %s {\n", escape(name), id)
		prev := "[*]"
		for i, st := range cycle.Stages {
			sid := fmt.Sprintf("%s_%d", id, i+1)
			label := fmt.Sprintf("%d. %s (%s)", i+1, st.Name, st.Duration)
			if st.Action != "" {
				label += " -> " + st.Action
			}
			fmt.Fprintf(&sb, "        %s : %s\n", sid, escape(label))
			fmt.Fprintf(&sb, "        %s --> %s\n", prev, sid)
			prev = sid
		}
		fmt.Fprintf(&sb, "        %s --> [*]\n", prev)
		sb.WriteString("    }\n")

		if channels := routed[name]; len(channels) > 0 {
			fmt.Fprintf(&sb, "    idle --> %s : %s\n", id, escape(strings.Join(channels, ", ")))
		}
		fmt.Fprintf(&sb, "    %s --> idle : cleared\n", id)
		if cycle.Cooldown > 0 {
			cd := id + "_cooldown"
			fmt.Fprintf(&sb, "    %s : cooldown %s\n", cd, cycle.Cooldown)
			fmt.Fprintf(&sb, "    %s --> %s : completed\n", id, cd)
			fmt.Fprintf(&sb, "    %s --> idle : elapsed or cleared\n", cd)
			fmt.Fprintf(&sb, "    %s --> %s : alert still standing\n", cd, id)
		} else {
			fmt.Fprintf(&sb, "    %s --> idle : completed\n", id)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef started fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000\n")
		sb.WriteString("    classDef exhausted fill:#ffcdd2,stroke:#b71c1c,stroke-width:3px,color:#000\n")
		for _, name := range overlay.Started {
			fmt.Fprintf(&sb, "    class %s started\n", sanitizeMermaidID(name))
		}
		for _, name := range overlay.Exhausted {
			fmt.Fprintf(&sb, "    class %s exhausted\n", sanitizeMermaidID(name))
		}
	}
	return sb.String()
}

func routesByCycle(cfg *config.Config) map[string][]string {
	seen := make(map[string]map[string]bool)
	for _, ch := range cfg.Channels {
		for _, r := range ch.Routes {
			if seen[r.Cycle] == nil {
				seen[r.Cycle] = make(map[string]bool)
			}
			seen[r.Cycle][routeLabel(ch.ID, r)] = true
		}
	}
	out := make(map[string][]string, len(seen))
	for cycle, labels := range seen {
		for l := range labels {
			out[cycle] = append(out[cycle], l)
		}
		sort.Strings(out[cycle])
	}
	return out
}

func routeLabel(channel string, r config.Route) string {
	var parts []string
	if r.Tier != domain.TierInvalid {
		parts = append(parts, r.Tier.String())
	}
	if r.Side != domain.SideNone {
		parts = append(parts, string(r.Side))
	}
	if len(parts) == 0 {
		return channel
	}
	return channel + " " + strings.Join(parts, " ")
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
