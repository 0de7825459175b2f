// Command poller watches the dispatcher tables and drops cached route and
// entity data in Valkey as soon as the dispatcher changes it, so viewer
// replicas sharing the cache never serve a route older than one poll.
package main

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kabina/kabinaview/internal/adapters/postgres"
	"github.com/kabina/kabinaview/internal/adapters/valkey"
	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/core/ports"
	"github.com/kabina/kabinaview/internal/core/usecases"
	"github.com/kabina/kabinaview/internal/pkg/config"
	"github.com/kabina/kabinaview/internal/pkg/logging"
)

// DispatchSubject carries a Change whenever a poll finds differences.
const DispatchSubject = "kabina.viewer.dispatch"

// Change summarises one poll's differences.
type Change struct {
	Changed []int64   `json:"changed,omitempty"`
	Removed []int64   `json:"removed,omitempty"`
	Routes  int       `json:"routes"`
	At      time.Time `json:"at"`
}

func main() {
	cfg, err := config.Load("kabinaview-poller")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if cfg.Database.Driver != "postgres" {
		log.Fatal("poller watches the live dispatcher; database.driver must be postgres")
	}
	if !cfg.Valkey.Enabled {
		log.Fatal("poller needs valkey.enabled=true")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewViewerRepo(db)

	cache, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	var nc *nats.Conn
	if cfg.NATS.Enabled {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name("kabinaview-poller"),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			slog.Warn("nats unavailable, changes will not be announced", "error", err)
		} else {
			defer nc.Drain()
		}
	}

	p := &poller{
		repo:     repo,
		routes:   usecases.NewRouteService(repo, cache, cfg.Viewer.CacheTTL),
		entities: usecases.NewEntityService(repo, cache, cfg.Viewer.CacheTTL),
		nc:       nc,
		seen:     map[int64]uint64{},
	}

	// Half the cache lifetime keeps invalidation ahead of expiry.
	interval := time.Duration(cfg.Viewer.CacheTTL) * time.Second / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("poller started", "interval", interval)
	p.poll(ctx)
	for {
		select {
		case <-ticker.C:
			p.poll(ctx)
		case sig := <-quit:
			slog.Info("shutting down poller", "signal", sig.String())
			return
		}
	}
}

type poller struct {
	repo     ports.ViewerRepository
	routes   *usecases.RouteService
	entities *usecases.EntityService
	nc       *nats.Conn
	seen     map[int64]uint64
}

func (p *poller) poll(ctx context.Context) {
	legs, err := p.repo.FetchAllLegs(ctx)
	if err != nil {
		slog.Error("fetch legs", "error", err)
		return
	}

	for _, kind := range []domain.EntityKind{domain.KindCab, domain.KindOrder} {
		p.entities.Invalidate(ctx, kind)
	}

	current := fingerprints(legs)
	change := diff(p.seen, current)
	p.seen = current
	if len(change.Changed) == 0 && len(change.Removed) == 0 {
		return
	}

	for _, id := range change.Changed {
		p.routes.InvalidateRoute(ctx, id)
	}
	for _, id := range change.Removed {
		p.routes.InvalidateRoute(ctx, id)
	}
	p.routes.InvalidateIndex(ctx)

	change.Routes = len(current)
	change.At = time.Now().UTC()
	slog.Info("dispatcher changed", "changed", len(change.Changed), "removed", len(change.Removed), "routes", change.Routes)

	if p.nc != nil {
		if data, err := json.Marshal(change); err == nil {
			_ = p.nc.Publish(DispatchSubject, data)
		}
	}
}

// fingerprints hashes the legs of each route; legs arrive ordered by route
// id, then place.
func fingerprints(legs []domain.LegRecord) map[int64]uint64 {
	out := make(map[int64]uint64)
	h := fnv.New64a()
	flush := func(route int64) {
		if route != 0 {
			out[route] = h.Sum64()
		}
		h.Reset()
	}
	var route int64
	var buf []byte
	for _, l := range legs {
		if l.RouteID != route {
			flush(route)
			route = l.RouteID
		}
		buf = buf[:0]
		for _, v := range []int64{l.ID, int64(l.Place), l.FromStand, l.ToStand, int64(l.Status), int64(l.Distance)} {
			buf = strconv.AppendInt(buf, v, 10)
			buf = append(buf, ',')
		}
		h.Write(buf)
	}
	flush(route)
	return out
}

// diff lists the routes whose fingerprint differs from before, new routes
// included, and the routes that disappeared.
func diff(before, after map[int64]uint64) Change {
	var c Change
	for id, fp := range after {
		if old, ok := before[id]; !ok || old != fp {
			c.Changed = append(c.Changed, id)
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			c.Removed = append(c.Removed, id)
		}
	}
	return c
}
