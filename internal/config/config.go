// Package config holds the viewer settings: where shaders and scenes live,
// the window, the camera, render toggles, logging and the lights added to
// every loaded scene.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/om3d/forward/pkg/math3d"
	"github.com/om3d/forward/pkg/render"
	"github.com/om3d/forward/pkg/scene"
)

// Vec3 is a TOML array of three numbers.
type Vec3 [3]float64

// Vec converts to a math3d vector.
func (v Vec3) Vec() math3d.Vec3 {
	return math3d.V3(v[0], v[1], v[2])
}

// Config is the complete viewer configuration.
type Config struct {
	Paths  Paths    `toml:"paths"`
	Window Window   `toml:"window"`
	Camera Camera   `toml:"camera"`
	Render Render   `toml:"render"`
	Log    Log      `toml:"log"`
	Scenes []string `toml:"scenes"`
	Lights []Light  `toml:"lights"`
}

// Paths locates shader sources and scene files.
type Paths struct {
	// Shaders is the directory holding the GLSL sources.
	Shaders string `toml:"shaders"`
	// Data is the directory scene names are resolved against.
	Data string `toml:"data"`
}

// Resolve returns name joined to the data directory. Absolute names are
// returned unchanged.
func (p Paths) Resolve(name string) string {
	return join(p.Data, name)
}

func join(dir, name string) string {
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// Window is the initial window size, in pixels for the GL viewer.
type Window struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
}

// Camera is the initial camera setup.
type Camera struct {
	FOVDegrees  float64 `toml:"fov_degrees"`
	Near        float64 `toml:"near"`
	Speed       float64 `toml:"speed"`
	Sensitivity float64 `toml:"sensitivity"`
	Position    Vec3    `toml:"position"`
	Target      Vec3    `toml:"target"`
}

// Apply configures cam from the settings.
func (c Camera) Apply(cam *render.Camera) {
	cam.SetFOV(c.FOVDegrees * math.Pi / 180)
	cam.SetNear(c.Near)
	cam.SetSpeed(c.Speed)
	cam.SetSensitivity(c.Sensitivity)
	cam.LookAt(c.Position.Vec(), c.Target.Vec(), math3d.Up())
}

// Render selects render toggles and policies.
type Render struct {
	Tonemap      bool    `toml:"tonemap"`
	Deferred     bool    `toml:"deferred"`
	Cull         string  `toml:"cull"`
	Bounds       string  `toml:"bounds"`
	SunDirection Vec3    `toml:"sun_direction"`
	SunColor     Vec3    `toml:"sun_color"`
	FPS          int     `toml:"fps"`
	Exposure     float64 `toml:"exposure"`
}

// CullMode parses Cull.
func (r Render) CullMode() (render.CullMode, error) {
	return render.ParseCullMode(r.Cull)
}

// BoundsMode parses Bounds.
func (r Render) BoundsMode() (scene.BoundsMode, error) {
	return scene.ParseBoundsMode(r.Bounds)
}

// Log configures the process logger.
type Log struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`
	// Format is text or json.
	Format string `toml:"format"`
}

// NewLogger returns a logger writing to w.
func (l Log) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(l.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", l.Format)
}

// Light is a point light added to every loaded scene.
type Light struct {
	Position Vec3    `toml:"position"`
	Color    Vec3    `toml:"color"`
	Radius   float64 `toml:"radius"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Paths: Paths{
			Shaders: "shaders",
			Data:    "data",
		},
		Window: Window{
			Width:  1600,
			Height: 900,
			Title:  "forward",
		},
		Camera: Camera{
			FOVDegrees:  60,
			Near:        render.DefaultNear,
			Speed:       render.DefaultSpeed,
			Sensitivity: render.DefaultSensitivity,
			Position:    Vec3{0, 0, 0},
			Target:      Vec3{0, 0, -1},
		},
		Render: Render{
			Cull:         render.CullProbe.String(),
			Bounds:       scene.BoundsCorrected.String(),
			SunDirection: Vec3{0.2, 1, 0.1},
			SunColor:     Vec3{1, 1, 1},
			FPS:          60,
			Exposure:     1,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Scenes: []string{"sponza.glb", "box.glb", "cube.glb", "forest_huge.glb"},
		Lights: []Light{
			{Position: Vec3{1, 2, 4}, Color: Vec3{0, 10, 0}, Radius: 100},
			{Position: Vec3{1, 2, -4}, Color: Vec3{10, 0, 0}, Radius: 50},
		},
	}
}

// Load reads the TOML file at path over the defaults and validates the
// result. Unknown keys are an error.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads TOML from r over the defaults and validates the result.
// The scenes and lights lists replace the defaults when present.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	scenes, lights := cfg.Scenes, cfg.Lights
	cfg.Scenes, cfg.Lights = nil, nil
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("decode config at %d:%d: %w", row, col, err)
		}
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Scenes == nil {
		cfg.Scenes = scenes
	}
	if cfg.Lights == nil {
		cfg.Lights = lights
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode writes cfg as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if c.Camera.FOVDegrees <= 0 || c.Camera.FOVDegrees >= 180 {
		errs = append(errs, fmt.Errorf("camera fov %g must be in (0, 180)", c.Camera.FOVDegrees))
	}
	if c.Camera.Near <= 0 {
		errs = append(errs, fmt.Errorf("camera near %g must be positive", c.Camera.Near))
	}
	if c.Camera.Speed < 0 || c.Camera.Sensitivity < 0 {
		errs = append(errs, errors.New("camera speed and sensitivity must not be negative"))
	}
	if c.Camera.Position == c.Camera.Target {
		errs = append(errs, errors.New("camera position and target must differ"))
	}
	if _, err := c.Render.CullMode(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Render.BoundsMode(); err != nil {
		errs = append(errs, err)
	}
	if c.Render.SunDirection.Vec().LenSq() == 0 {
		errs = append(errs, errors.New("sun direction must not be zero"))
	}
	if c.Render.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps %d must be positive", c.Render.FPS))
	}
	if c.Render.Exposure <= 0 {
		errs = append(errs, fmt.Errorf("exposure %g must be positive", c.Render.Exposure))
	}
	if _, err := c.Log.NewLogger(io.Discard); err != nil {
		errs = append(errs, err)
	}
	for i, l := range c.Lights {
		if l.Radius <= 0 {
			errs = append(errs, fmt.Errorf("light %d radius %g must be positive", i, l.Radius))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SetupScene sets the sun direction and adds the configured lights to s.
// It is meant as the setup hook of render.View.Load.
func (c *Config) SetupScene(s *scene.Scene) {
	s.SunDirection = c.Render.SunDirection.Vec()
	for _, l := range c.Lights {
		s.AddPointLight(scene.PointLight{
			Position: l.Position.Vec(),
			Color:    l.Color.Vec(),
			Radius:   l.Radius,
		})
	}
}

// SceneName returns the n-th quick-load scene, counting from 1.
func (c *Config) SceneName(n int) (string, bool) {
	if n < 1 || n > len(c.Scenes) {
		return "", false
	}
	return c.Scenes[n-1], true
}
