// forward - Terminal scene viewer
// Renders glTF scenes with the forward renderer on the software device and
// shows them in the terminal with half-block pixels.
//
// Controls:
//
//	W/S         - Move forward/back
//	A/D         - Strafe left/right
//	Space       - Move up
//	Shift       - Double speed (with a movement key)
//	Mouse drag  - Look around
//	1-9         - Load the configured scene
//	T           - Toggle tonemapping
//	G           - Toggle deferred albedo view
//	C           - Cycle cull mode (probe, sphere, none)
//	P           - Save a PNG screenshot
//	?           - Toggle HUD overlay
//	Esc/Q       - Quit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/om3d/forward/internal/config"
	"github.com/om3d/forward/pkg/control"
	"github.com/om3d/forward/pkg/math3d"
	"github.com/om3d/forward/pkg/render"
	"github.com/om3d/forward/pkg/scene"
	"github.com/om3d/forward/pkg/soft"
)

var (
	configPath = flag.String("config", "", "Path to a TOML config file")
	logPath    = flag.String("log", "", "Write logs to this file (default: discard)")
	targetFPS  = flag.Int("fps", 0, "Target FPS (overrides config)")
	cullFlag   = flag.String("cull", "", "Cull mode: probe, sphere or none (overrides config)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "forward - Terminal scene viewer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: forward [options] [scene.glb|scene.gltf]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  W/S/A/D     - Move and strafe\n")
		fmt.Fprintf(os.Stderr, "  Space       - Move up\n")
		fmt.Fprintf(os.Stderr, "  Shift       - Double speed\n")
		fmt.Fprintf(os.Stderr, "  Mouse drag  - Look around\n")
		fmt.Fprintf(os.Stderr, "  1-9         - Load configured scene\n")
		fmt.Fprintf(os.Stderr, "  T           - Toggle tonemapping\n")
		fmt.Fprintf(os.Stderr, "  G           - Toggle deferred albedo view\n")
		fmt.Fprintf(os.Stderr, "  C           - Cycle cull mode\n")
		fmt.Fprintf(os.Stderr, "  P           - Save screenshot\n")
		fmt.Fprintf(os.Stderr, "  ?           - Toggle HUD overlay\n")
		fmt.Fprintf(os.Stderr, "  Esc/Q       - Quit\n")
	}
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// viewState holds the viewer toggles
type viewState struct {
	tonemap  bool
	deferred bool
	showHUD  bool
	cull     render.CullMode
}

func (vs *viewState) resolveOptions(exposure float64) soft.ResolveOptions {
	opts := soft.ResolveOptions{Tonemap: vs.tonemap, Exposure: exposure}
	if vs.deferred {
		opts.Source = soft.AttachAlbedo
	}
	return opts
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}
	if *targetFPS > 0 {
		cfg.Render.FPS = *targetFPS
	}
	if *cullFlag != "" {
		cfg.Render.Cull = *cullFlag
	}
	return cfg, cfg.Validate()
}

func openLog(cfg *config.Config) (*slog.Logger, func(), error) {
	if *logPath == "" {
		logger, err := cfg.Log.NewLogger(io.Discard)
		return logger, func() {}, err
	}
	f, err := os.Create(*logPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	logger, err := cfg.Log.NewLogger(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return logger, func() { f.Close() }, nil
}

func initialScene(cfg *config.Config) (string, error) {
	if flag.NArg() > 0 {
		return flag.Arg(0), nil
	}
	name, ok := cfg.SceneName(1)
	if !ok {
		return "", errors.New("no scene given and none configured")
	}
	return cfg.Paths.Resolve(name), nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := openLog(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	cull, _ := cfg.Render.CullMode()
	bounds, _ := cfg.Render.BoundsMode()

	scenePath, err := initialScene(cfg)
	if err != nil {
		return err
	}

	// Create terminal
	term := uv.DefaultTerminal()

	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}

	// Device and scene setup happen before the alt screen so load errors
	// are readable.
	dev := soft.NewDevice(width, height*2)
	dev.Logger = logger

	lib := scene.NewMaterialLibrary(dev)
	loader := scene.NewLoader(dev, lib)
	loader.Bounds = bounds
	loader.Logger = logger

	renderer := render.NewRenderer(dev)
	renderer.Cull = cull
	renderer.SunColor = cfg.Render.SunColor.Vec()
	renderer.Logger = logger

	view := render.NewView(renderer, logger)
	cam := view.Camera()
	cfg.Camera.Apply(cam)
	cam.SetAspect(float64(width) / float64(height*2))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := view.Load(ctx, loader, scenePath, cfg.SetupScene); err != nil {
		return err
	}

	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	// Enable mouse mode
	fmt.Fprint(os.Stdout, "\x1b[?1003h") // Enable any-event mouse tracking
	fmt.Fprint(os.Stdout, "\x1b[?1006h") // Enable SGR extended mouse mode

	defer func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
		view.Scene().Release()
		lib.Release()
	}()

	fb := soft.NewFramebuffer(width, height*2)
	fly := control.NewFly(cfg.Render.FPS)
	keys := newKeyState()
	vs := &viewState{
		tonemap:  cfg.Render.Tonemap,
		deferred: cfg.Render.Deferred,
		showHUD:  true,
		cull:     cull,
	}
	dev.Target().GBuffer = vs.deferred

	hud := NewHUD(os.Stdout)
	hud.SetScene(filepath.Base(scenePath), view.Scene().TriangleCount())

	load := func(n int) {
		name, ok := cfg.SceneName(n)
		if !ok {
			return
		}
		path := cfg.Paths.Resolve(name)
		if err := view.Load(ctx, loader, path, cfg.SetupScene); err != nil {
			logger.Error("quick-load failed", "scene", name, "err", err)
			hud.SetStatus(fmt.Sprintf("cannot load %s", name))
			return
		}
		hud.SetScene(name, view.Scene().TriangleCount())
		hud.SetStatus("")
		fly.Stop()
	}

	handle := func(ev any, now time.Time) {
		switch ev := ev.(type) {
		case uv.WindowSizeEvent:
			width, height = ev.Width, ev.Height
			term.Erase()
			term.Resize(width, height)
			dev.Resize(width, height*2)
			cam.SetAspect(float64(width) / float64(height*2))

		case uv.KeyPressEvent:
			boost := ev.Mod.Contains(uv.ModShift)
			switch {
			case ev.MatchString("escape", "q", "ctrl+c"):
				cancel()
			case ev.MatchString("w", "shift+w", "up"):
				keys.press("w", boost, now)
			case ev.MatchString("s", "shift+s", "down"):
				keys.press("s", boost, now)
			case ev.MatchString("a", "shift+a", "left"):
				keys.press("a", boost, now)
			case ev.MatchString("d", "shift+d", "right"):
				keys.press("d", boost, now)
			case ev.MatchString("space", "shift+space"):
				keys.press("space", boost, now)
			case ev.MatchString("t"):
				vs.tonemap = !vs.tonemap
			case ev.MatchString("g"):
				vs.deferred = !vs.deferred
				dev.Target().GBuffer = vs.deferred
			case ev.MatchString("c"):
				vs.cull = (vs.cull + 1) % (render.CullNone + 1)
				renderer.Cull = vs.cull
			case ev.MatchString("p"):
				name := fmt.Sprintf("forward-%s.png", now.Format("20060102-150405"))
				if err := fb.SavePNG(name); err != nil {
					logger.Error("screenshot failed", "err", err)
					hud.SetStatus("screenshot failed")
				} else {
					hud.SetStatus("saved " + name)
				}
			case ev.MatchString("?", "shift+/"):
				vs.showHUD = !vs.showHUD
			default:
				for n := 1; n <= 9; n++ {
					if ev.MatchString(strconv.Itoa(n)) {
						load(n)
						break
					}
				}
			}

		case uv.KeyReleaseEvent:
			switch {
			case ev.MatchString("w", "up"):
				keys.release("w")
			case ev.MatchString("s", "down"):
				keys.release("s")
			case ev.MatchString("a", "left"):
				keys.release("a")
			case ev.MatchString("d", "right"):
				keys.release("d")
			case ev.MatchString("space"):
				keys.release("space")
			}

		case uv.MouseClickEvent:
			if ev.Button == uv.MouseLeft {
				keys.startDrag(ev.X, ev.Y)
			}

		case uv.MouseReleaseEvent:
			keys.stopDrag()

		case uv.MouseMotionEvent:
			keys.drag(ev.X, ev.Y)
		}
	}

	// Main loop
	targetDuration := time.Second / time.Duration(cfg.Render.FPS)
	lastFrame := time.Now()
	events := term.Events()
	background := math3d.V3(0, 0, 0)

	for {
		now := time.Now()
	drain:
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev := <-events:
				handle(ev, now)
			default:
				break drain
			}
		}

		dt := now.Sub(lastFrame).Seconds()
		lastFrame = now
		if dt > 0.1 {
			dt = 0.1
		}

		fly.Update(cam, keys.input(now), dt)

		dev.Clear(background)
		stats, err := view.Render()
		if err != nil {
			logger.Error("render failed", "scene", view.Path(), "err", err)
			return fmt.Errorf("render: %w", err)
		}

		dev.Target().Resolve(fb, vs.resolveOptions(cfg.Render.Exposure))
		fb.Draw(term, uv.Rect(0, 0, width, height))
		if err := term.Display(); err != nil {
			return fmt.Errorf("display: %w", err)
		}

		if hud.UpdateFPS() {
			logger.Debug("frame", "fps", hud.FPS(), "stats", stats, "triangles", dev.Stats.Triangles)
		}
		hud.Render(width, height, vs, stats, dev.Stats)

		// Frame timing
		elapsed := time.Since(now)
		if elapsed < targetDuration {
			time.Sleep(targetDuration - elapsed)
		}
	}
}
