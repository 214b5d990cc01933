// forward-gl - Windowed scene viewer
// Renders glTF scenes with the forward renderer on OpenGL 4.5.
//
// Controls:
//
//	W/S         - Move forward/back
//	A/D         - Strafe left/right
//	Space       - Move up
//	Left Shift  - Double speed
//	Left drag   - Look around
//	1-9         - Load the configured scene
//	T           - Toggle tonemapping
//	G           - Toggle deferred albedo view
//	C           - Cycle cull mode (probe, sphere, none)
//	Esc         - Quit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/om3d/forward/internal/config"
	"github.com/om3d/forward/pkg/control"
	"github.com/om3d/forward/pkg/glgpu"
	"github.com/om3d/forward/pkg/math3d"
	"github.com/om3d/forward/pkg/render"
	"github.com/om3d/forward/pkg/scene"
)

func init() {
	// GL calls must stay on the thread owning the context.
	runtime.LockOSThread()
}

var (
	configPath = flag.String("config", "", "Path to a TOML config file")
	cullFlag   = flag.String("cull", "", "Cull mode: probe, sphere or none (overrides config)")
	vsync      = flag.Bool("vsync", true, "Wait for vertical sync")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "forward-gl - Windowed scene viewer\n\n")
		fmt.Fprintf(os.Stderr, "Usage: forward-gl [options] [scene.glb|scene.gltf]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// toggles are the render switches that need a program rebuild
type toggles struct {
	tonemap  bool
	deferred bool
}

// defines returns the shader defines selecting the toggles
func (t toggles) defines() []string {
	var d []string
	if t.tonemap {
		d = append(d, glgpu.DefineTonemap)
	}
	if t.deferred {
		d = append(d, glgpu.DefineDebugAlbedo)
	}
	return d
}

// swapLibrary reloads the current scene with materials from lib. Programs
// are compiled with the toggles baked in, so a toggle needs a new library.
// On success the previous library is released; on failure lib is released
// and the previous one stays in use.
func swapLibrary(ctx context.Context, loader *scene.Loader, view *render.View, lib *scene.MaterialLibrary, setup func(*scene.Scene)) error {
	old := loader.Library
	loader.Library = lib
	if err := view.Load(ctx, loader, view.Path(), setup); err != nil {
		lib.Release()
		loader.Library = old
		return err
	}
	old.Release()
	return nil
}

// windowTitle names the scene just loaded, or the one that failed to load.
func windowTitle(base, name string, err error) string {
	if err != nil {
		return fmt.Sprintf("%s - cannot load %s", base, name)
	}
	return fmt.Sprintf("%s - %s", base, name)
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, err
		}
	}
	if *cullFlag != "" {
		cfg.Render.Cull = *cullFlag
	}
	return cfg, cfg.Validate()
}

func createWindow(w config.Window) (*glfw.Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 5)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err := glfw.CreateWindow(w.Width, w.Height, w.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	window.MakeContextCurrent()
	return window, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	cull, _ := cfg.Render.CullMode()
	bounds, _ := cfg.Render.BoundsMode()

	scenePath := flag.Arg(0)
	if scenePath == "" {
		name, ok := cfg.SceneName(1)
		if !ok {
			return errors.New("no scene given and none configured")
		}
		scenePath = cfg.Paths.Resolve(name)
	}

	window, err := createWindow(cfg.Window)
	if err != nil {
		return err
	}
	defer glfw.Terminate()
	defer window.Destroy()

	if *vsync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	dev, err := glgpu.New(os.DirFS(cfg.Paths.Shaders), glgpu.WithLogger(logger))
	if err != nil {
		return err
	}

	tg := toggles{tonemap: cfg.Render.Tonemap, deferred: cfg.Render.Deferred}
	loader := scene.NewLoader(dev, scene.NewMaterialLibrary(dev, tg.defines()...))
	loader.Bounds = bounds
	loader.Logger = logger

	renderer := render.NewRenderer(dev)
	renderer.Cull = cull
	renderer.SunColor = cfg.Render.SunColor.Vec()
	renderer.Logger = logger

	view := render.NewView(renderer, logger)
	cam := view.Camera()
	cfg.Camera.Apply(cam)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := view.Load(ctx, loader, scenePath, cfg.SetupScene); err != nil {
		return err
	}
	defer func() {
		view.Scene().Release()
		loader.Library.Release()
	}()
	logger.Info("scene ready", "path", scenePath, "objects", len(view.Scene().Objects), "triangles", view.Scene().TriangleCount())

	rebuild := func(next toggles) {
		lib := scene.NewMaterialLibrary(dev, next.defines()...)
		if err := swapLibrary(ctx, loader, view, lib, cfg.SetupScene); err != nil {
			logger.Error("rebuild failed", "err", err)
			return
		}
		tg = next
	}

	quickLoad := func(w *glfw.Window, n int) {
		name, ok := cfg.SceneName(n)
		if !ok {
			return
		}
		err := view.Load(ctx, loader, cfg.Paths.Resolve(name), cfg.SetupScene)
		if err != nil {
			logger.Error("quick-load failed", "scene", name, "err", err)
		}
		w.SetTitle(windowTitle(cfg.Window.Title, name, err))
	}

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch {
		case key == glfw.KeyEscape:
			w.SetShouldClose(true)
		case key == glfw.KeyT:
			next := tg
			next.tonemap = !next.tonemap
			rebuild(next)
		case key == glfw.KeyG:
			next := tg
			next.deferred = !next.deferred
			rebuild(next)
		case key == glfw.KeyC:
			renderer.Cull = (renderer.Cull + 1) % (render.CullNone + 1)
			logger.Info("cull mode", "mode", renderer.Cull)
		case key >= glfw.Key1 && key <= glfw.Key9:
			quickLoad(w, int(key-glfw.Key1)+1)
		}
	})

	fly := control.NewFly(cfg.Render.FPS)
	mouseX, mouseY := window.GetCursorPos()
	lastFrame := time.Now()
	lastLog := lastFrame
	background := math3d.V3(0, 0, 0)
	frames := 0

	for !window.ShouldClose() {
		if ctx.Err() != nil {
			return nil
		}
		glfw.PollEvents()

		now := time.Now()
		dt := now.Sub(lastFrame).Seconds()
		lastFrame = now

		x, y := window.GetCursorPos()
		in := control.Input{
			Forward: window.GetKey(glfw.KeyW) == glfw.Press,
			Back:    window.GetKey(glfw.KeyS) == glfw.Press,
			Left:    window.GetKey(glfw.KeyA) == glfw.Press,
			Right:   window.GetKey(glfw.KeyD) == glfw.Press,
			Up:      window.GetKey(glfw.KeySpace) == glfw.Press,
			Boost:   window.GetKey(glfw.KeyLeftShift) == glfw.Press,
		}
		if window.GetMouseButton(glfw.MouseButtonLeft) == glfw.Press {
			in.LookX, in.LookY = x-mouseX, y-mouseY
		}
		mouseX, mouseY = x, y
		fly.Update(cam, in, dt)

		width, height := window.GetFramebufferSize()
		if width > 0 && height > 0 {
			cam.SetAspect(float64(width) / float64(height))
			dev.Viewport(width, height)
		}

		dev.Clear(background)
		stats, err := view.Render()
		if err != nil {
			logger.Error("render failed", "scene", view.Path(), "err", err)
			return fmt.Errorf("render: %w", err)
		}
		window.SwapBuffers()

		frames++
		if elapsed := now.Sub(lastLog); elapsed >= time.Second {
			logger.Debug("frame", "fps", float64(frames)/elapsed.Seconds(), "stats", stats)
			frames = 0
			lastLog = now
		}
	}
	return nil
}
