// Command render draws one viewer frame to a PNG file without starting the
// server. It reads the same configuration as the viewer.
//
//	render -view route -route 3 -commands zoom_in,pan_left -out route3.png
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kabina/kabinaview/internal/adapters/postgres"
	"github.com/kabina/kabinaview/internal/adapters/raster"
	"github.com/kabina/kabinaview/internal/adapters/sqlite"
	"github.com/kabina/kabinaview/internal/core/domain"
	"github.com/kabina/kabinaview/internal/core/ports"
	"github.com/kabina/kabinaview/internal/core/usecases"
	"github.com/kabina/kabinaview/internal/pkg/config"
	"github.com/kabina/kabinaview/internal/pkg/logging"
)

func main() {
	var (
		view     = flag.String("view", "order", "order, cab, stop or route")
		route    = flag.Int("route", 0, "1-based route index for the route view")
		order    = flag.Int64("order", 0, "order whose route is shown and highlighted")
		zoom     = flag.Int("zoom", 1, "initial magnification")
		commands = flag.String("commands", "", "comma separated commands applied before drawing, e.g. zoom_in,pan_up")
		out      = flag.String("out", "frame.png", "output PNG path, - for stdout")
		dump     = flag.Bool("json", false, "also write the frame as JSON to stderr")
	)
	flag.Parse()

	if err := run(*view, *route, *order, *zoom, *commands, *out, *dump); err != nil {
		fmt.Fprintln(os.Stderr, "render:", err)
		os.Exit(1)
	}
}

func run(view string, route int, order int64, zoom int, commands, out string, dump bool) error {
	cfg, err := config.Load("kabinaview-render")
	if err != nil {
		return err
	}
	// stdout may carry the PNG
	logging.SetupWriter(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	initial := domain.NavigationState{
		RouteIndex: route,
		FocusOrder: order,
		Viewport:   domain.FullExtent(),
	}
	if initial.View, err = domain.ParseViewKind(view); err != nil {
		return err
	}
	if zoom > 0 {
		initial.Viewport.Magnification = zoom
	}
	var cmds []domain.Command
	for _, name := range strings.Split(commands, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		cmd, err := domain.ParseCommand(name)
		if err != nil {
			return err
		}
		cmds = append(cmds, cmd)
	}

	ctx := context.Background()
	repo, closeRepo, err := openRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	renderer, err := raster.New(cfg.Viewer.WindowSize, cfg.Viewer.BackgroundImage)
	if err != nil {
		return err
	}

	layer := usecases.NewEntityLayer()
	layer.Radius = cfg.Viewer.EntityRadius
	layer.Thickness = cfg.Viewer.EntityThickness
	layer.JitterBound = cfg.Viewer.Jitter
	viewer := usecases.NewViewerService("render",
		usecases.NewEntityService(repo, nil, 0),
		usecases.NewRouteService(repo, nil, 0),
		nil,
		usecases.ViewerOptions{
			Box:         cfg.Viewer.Box(),
			FullWidth:   cfg.Viewer.FullWidth,
			FullHeight:  cfg.Viewer.FullHeight,
			RouteMargin: cfg.Viewer.RouteMargin,
			EntityLayer: layer,
		}, initial)

	frame, err := viewer.Open(ctx)
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		if cmd.Type == domain.CmdQuit {
			break
		}
		if frame, err = viewer.Handle(ctx, cmd); err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
	}
	if frame.Notice != "" {
		slog.Warn("frame notice", "notice", frame.Notice)
	}

	if dump {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		if err := enc.Encode(frame); err != nil {
			return err
		}
	}

	var w io.Writer = os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := renderer.Render(ctx, frame, w); err != nil {
		return fmt.Errorf("rasterize: %w", err)
	}
	slog.Info("frame rendered", "view", frame.View, "route_index", frame.RouteIndex,
		"commands", len(frame.Commands), "out", out)
	return nil
}

func openRepo(ctx context.Context, cfg *config.Config) (ports.ViewerRepository, func(), error) {
	if cfg.Database.Driver == "sqlite" {
		db, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewViewerRepo(db), func() { _ = db.Close() }, nil
	}
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewViewerRepo(db), db.Close, nil
}
