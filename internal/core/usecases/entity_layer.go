package usecases

import (
	"log/slog"
	"math/rand/v2"

	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/pkg/geospatial"
	"github.com/kabina/kabinaview/internal/pkg/metrics"
)

// Entity circle defaults, in full-canvas pixels.
const (
	DefaultEntityRadius    = 15
	DefaultEntityThickness = 10
	DefaultJitterBound     = 4
)

// EntityLayer turns entity snapshots into status-coloured circles.
//
// Every circle is shifted by a random offset in [-JitterBound, JitterBound] on
// each axis so that entities sharing a stand stay distinguishable. The offset
// is drawn fresh on every call, so output positions are not reproducible.
type EntityLayer struct {
	Radius      int
	Thickness   int
	JitterBound int

	// Jitter returns an offset in [-bound, bound]. Nil uses math/rand.
	Jitter func(bound int) int
}

// NewEntityLayer returns a layer with the default geometry.
func NewEntityLayer() *EntityLayer {
	return &EntityLayer{
		Radius:      DefaultEntityRadius,
		Thickness:   DefaultEntityThickness,
		JitterBound: DefaultJitterBound,
	}
}

// StatusColor is the fixed status-to-colour policy.
func StatusColor(kind domain.EntityKind, status int) domain.Color {
	switch kind {
	case domain.KindCab:
		switch status {
		case domain.CabAssigned:
			return domain.ColorYellow
		case domain.CabFree:
			return domain.ColorBlack
		}
		return domain.ColorRed
	case domain.KindOrder:
		switch status {
		case domain.OrderReceived:
			return domain.ColorDarkRed
		case domain.OrderAssigned:
			return domain.ColorBlack
		case domain.OrderPickedUp:
			return domain.ColorYellow
		}
		return domain.ColorRed
	case domain.KindStop:
		return domain.ColorBlue
	}
	return domain.ColorRed
}

// Render projects each entity and emits one circle per valid position.
func (l *EntityLayer) Render(entities []domain.EntitySnapshot, proj geospatial.Projector) []domain.DrawCommand {
	cmds := make([]domain.DrawCommand, 0, len(entities))
	for _, e := range entities {
		if !e.Position.Valid() {
			metrics.EntitiesSkipped.WithLabelValues(string(e.Kind)).Inc()
			slog.Debug("entity without coordinates skipped", "kind", e.Kind, "id", e.ID)
			continue
		}
		if !proj.InBox(e.Position) {
			metrics.EntitiesOutOfBox.WithLabelValues(string(e.Kind)).Inc()
		}
		center := proj.ProjectScreen(e.Position).Offset(l.jitter(), l.jitter())
		cmds = append(cmds, domain.Circle(center, l.Radius, StatusColor(e.Kind, e.Status), l.Thickness))
	}
	return cmds
}

func (l *EntityLayer) jitter() int {
	if l.JitterBound <= 0 {
		return 0
	}
	if l.Jitter != nil {
		return l.Jitter(l.JitterBound)
	}
	return rand.IntN(2*l.JitterBound+1) - l.JitterBound
}
