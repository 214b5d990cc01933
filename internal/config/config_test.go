package config

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/om3d/forward/pkg/math3d"
	"github.com/om3d/forward/pkg/render"
	"github.com/om3d/forward/pkg/scene"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cull, err := cfg.Render.CullMode()
	require.NoError(t, err)
	assert.Equal(t, render.CullProbe, cull)

	bounds, err := cfg.Render.BoundsMode()
	require.NoError(t, err)
	assert.Equal(t, scene.BoundsCorrected, bounds)

	assert.Equal(t, []string{"sponza.glb", "box.glb", "cube.glb", "forest_huge.glb"}, cfg.Scenes)
	assert.Len(t, cfg.Lights, 2)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"cull", func(c *Config) { c.Render.Cull = "octree" }, "cull mode"},
		{"bounds", func(c *Config) { c.Render.Bounds = "aabb" }, "bounds mode"},
		{"window", func(c *Config) { c.Window.Width = 0 }, "window size"},
		{"fov", func(c *Config) { c.Camera.FOVDegrees = 180 }, "fov"},
		{"near", func(c *Config) { c.Camera.Near = 0 }, "near"},
		{"speed", func(c *Config) { c.Camera.Speed = -1 }, "speed"},
		{"target", func(c *Config) { c.Camera.Target = c.Camera.Position }, "target"},
		{"sun", func(c *Config) { c.Render.SunDirection = Vec3{} }, "sun direction"},
		{"fps", func(c *Config) { c.Render.FPS = 0 }, "fps"},
		{"exposure", func(c *Config) { c.Render.Exposure = 0 }, "exposure"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"light", func(c *Config) { c.Lights[1].Radius = 0 }, "light 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Render.Cull = "bad"
	cfg.Render.Bounds = "bad"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cull mode")
	assert.Contains(t, err.Error(), "bounds mode")
}

func TestDecodeOverrides(t *testing.T) {
	const src = `
scenes = ["a.glb", "b.gltf"]

[paths]
data = "/srv/scenes"

[render]
cull = "sphere"
bounds = "observed"
tonemap = true
sun_color = [0.5, 0.5, 0.5]

[camera]
fov_degrees = 90.0
position = [0.0, 1.0, 5.0]
target = [0.0, 1.0, 0.0]

[[lights]]
position = [0.0, 3.0, 0.0]
color = [1.0, 1.0, 1.0]
radius = 20.0
`
	cfg, err := Decode(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, []string{"a.glb", "b.gltf"}, cfg.Scenes)
	assert.Equal(t, "/srv/scenes", cfg.Paths.Data)
	assert.Equal(t, "shaders", cfg.Paths.Shaders, "unset keys keep defaults")
	assert.Equal(t, "sphere", cfg.Render.Cull)
	assert.Equal(t, "observed", cfg.Render.Bounds)
	assert.True(t, cfg.Render.Tonemap)
	assert.False(t, cfg.Render.Deferred)
	assert.Equal(t, Vec3{0.5, 0.5, 0.5}, cfg.Render.SunColor)
	assert.Equal(t, Vec3{0.2, 1, 0.1}, cfg.Render.SunDirection)
	assert.InDelta(t, 90, cfg.Camera.FOVDegrees, 1e-12)
	assert.Equal(t, 1600, cfg.Window.Width)

	require.Len(t, cfg.Lights, 1, "lights replace the defaults")
	assert.Equal(t, Light{Position: Vec3{0, 3, 0}, Color: Vec3{1, 1, 1}, Radius: 20}, cfg.Lights[0])
}

func TestDecodeKeepsDefaultLists(t *testing.T) {
	cfg, err := Decode(strings.NewReader("[window]\nwidth = 800\n"))
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Window.Width)
	assert.Equal(t, Default().Scenes, cfg.Scenes)
	assert.Equal(t, Default().Lights, cfg.Lights)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", "[render\ncull = 1"},
		{"unknown key", "[render]\nshadows = true\n"},
		{"invalid value", "[render]\ncull = \"everything\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Render.Cull = "none"
	cfg.Lights = cfg.Lights[:1]

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))

	back, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forward.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\nformat = \"json\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	p := Paths{Shaders: "shaders", Data: "data"}
	assert.Equal(t, filepath.Join("data", "sponza.glb"), p.Resolve("sponza.glb"))

	abs := filepath.Join(t.TempDir(), "x.glb")
	assert.Equal(t, abs, p.Resolve(abs))
	assert.Equal(t, "x.glb", Paths{}.Resolve("x.glb"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Log{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("shown", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}

func TestSetupScene(t *testing.T) {
	cfg := Default()
	s := scene.New()
	cfg.SetupScene(s)

	assert.Equal(t, math3d.V3(0.2, 1, 0.1), s.SunDirection)
	require.Len(t, s.PointLights, 2)
	assert.Equal(t, scene.PointLight{
		Position: math3d.V3(1, 2, 4),
		Color:    math3d.V3(0, 10, 0),
		Radius:   100,
	}, s.PointLights[0])
}

func TestSceneName(t *testing.T) {
	cfg := Default()
	tests := []struct {
		n    int
		want string
		ok   bool
	}{
		{1, "sponza.glb", true},
		{4, "forest_huge.glb", true},
		{0, "", false},
		{5, "", false},
	}
	for _, tt := range tests {
		got, ok := cfg.SceneName(tt.n)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.ok, ok)
	}
}

func TestCameraApply(t *testing.T) {
	cam := render.NewCamera()
	c := Default().Camera
	c.FOVDegrees = 90
	c.Position = Vec3{0, 0, 5}
	c.Target = Vec3{0, 0, 0}
	c.Speed = 3
	c.Apply(cam)

	assert.InDelta(t, math.Pi/2, cam.FOV(), 1e-12)
	assert.InDelta(t, 3, cam.Speed(), 1e-12)
	assert.True(t, cam.Position().ApproxEqual(math3d.V3(0, 0, 5), 1e-9))
	assert.True(t, cam.Forward().ApproxEqual(math3d.V3(0, 0, -1), 1e-9))
}
