package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/om3d/forward/pkg/scene"
)

// SceneLoader produces scenes from files.
type SceneLoader interface {
	Load(ctx context.Context, path string) (*scene.Scene, error)
}

// View pairs a camera with the scene currently shown through it.
type View struct {
	renderer *Renderer
	camera   *Camera
	scene    *scene.Scene
	path     string
	logger   *slog.Logger
}

// NewView returns a view with a default camera and no scene.
func NewView(r *Renderer, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &View{
		renderer: r,
		camera:   NewCamera(),
		logger:   logger,
	}
}

// Camera returns the view's camera.
func (v *View) Camera() *Camera {
	return v.camera
}

// Scene returns the current scene, or nil.
func (v *View) Scene() *scene.Scene {
	return v.scene
}

// Path returns the file the current scene was loaded from.
func (v *View) Path() string {
	return v.path
}

// SetScene replaces the current scene without releasing the old one.
func (v *View) SetScene(s *scene.Scene) {
	v.scene = s
	v.path = ""
}

// Load loads path and makes it current. The setup hook, if any, runs on
// the new scene before it is shown. On failure the current scene is left
// untouched and the error is returned.
func (v *View) Load(ctx context.Context, loader SceneLoader, path string, setup func(*scene.Scene)) error {
	s, err := loader.Load(ctx, path)
	if err != nil {
		v.logger.Warn("scene load failed, keeping current scene", "path", path, "current", v.path, "err", err)
		return fmt.Errorf("load %q: %w", path, err)
	}
	if setup != nil {
		setup(s)
	}

	old := v.scene
	v.scene = s
	v.path = path
	if old != nil {
		old.Release()
	}
	return nil
}

// Render draws the current scene. Without a scene it does nothing.
func (v *View) Render() (FrameStats, error) {
	if v.scene == nil {
		return FrameStats{}, nil
	}
	return v.renderer.Render(v.scene, v.camera)
}
