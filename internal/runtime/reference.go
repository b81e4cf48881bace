package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/domain"
)

// referenceEvents fetches the reference reading once and turns it into at most
// one event. A failed fetch never aborts the run.
func (e *Engine) referenceEvents(ctx context.Context, at time.Time, log *slog.Logger) []domain.Event {
	psi := e.cfg.Reference.PSI
	if e.reference == nil || psi == nil {
		return nil
	}
	if psi.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, psi.Timeout)
		defer cancel()
	}

	reading, err := e.reference.Fetch(ctx, at)
	if err != nil {
		log.Warn("reference data unavailable", "error", err)
		return []domain.Event{{
			Timestamp: at,
			Channel:   domain.SystemChannel,
			Kind:      domain.EventReferenceUnavailable,
			Tier:      domain.TierInvalid,
			Detail:    err.Error(),
		}}
	}
	ev, ok := EvaluatePSI(psi, reading, at)
	if !ok {
		log.Info("reference data within healthy range", "metric", reading.Metric, "value", reading.Value)
		return nil
	}
	return []domain.Event{ev}
}

// EvaluatePSI grades a pollutant standards index reading against the haze bands.
// It reports false when the reading is in the healthy range.
func EvaluatePSI(psi *config.PSISettings, r domain.ReferenceReading, at time.Time) (domain.Event, bool) {
	ev := domain.Event{
		Timestamp: at,
		Channel:   domain.SystemChannel,
		Kind:      domain.EventReferenceAlert,
		Value:     r.Value,
	}
	switch {
	case psi.VeryUnhealthyMin > 0 && r.Value >= psi.VeryUnhealthyMin:
		ev.Tier = domain.TierCritical
		ev.Detail = fmt.Sprintf("PSI %g (%s) is very unhealthy or hazardous: recommend HEPA filters", r.Value, r.Region)
	case psi.UnhealthyMin > 0 && r.Value >= psi.UnhealthyMin && (psi.UnhealthyMax <= 0 || r.Value <= psi.UnhealthyMax):
		ev.Tier = domain.TierWarning
		ev.Detail = fmt.Sprintf("PSI %g (%s) is unhealthy: haze mode, recommend carbon filters", r.Value, r.Region)
	default:
		return domain.Event{}, false
	}
	return ev, true
}
