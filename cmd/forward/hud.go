package main

import (
	"fmt"
	"io"
	"time"

	"github.com/om3d/forward/pkg/render"
	"github.com/om3d/forward/pkg/soft"
)

// HUD renders an overlay with scene info and toggles
type HUD struct {
	out       io.Writer
	filename  string
	triangles int
	status    string

	fps       float64
	fpsFrames int
	fpsTime   time.Time
}

// NewHUD creates a HUD writing escape sequences to out
func NewHUD(out io.Writer) *HUD {
	return &HUD{out: out, fpsTime: time.Now()}
}

// SetScene updates the scene name and triangle count
func (h *HUD) SetScene(filename string, triangles int) {
	h.filename = filename
	h.triangles = triangles
}

// SetStatus shows a one-line message at the bottom until replaced
func (h *HUD) SetStatus(msg string) {
	h.status = msg
}

// UpdateFPS counts a frame and reports whether the FPS value was refreshed
func (h *HUD) UpdateFPS() bool {
	h.fpsFrames++
	elapsed := time.Since(h.fpsTime)
	if elapsed < time.Second {
		return false
	}
	h.fps = float64(h.fpsFrames) / elapsed.Seconds()
	h.fpsFrames = 0
	h.fpsTime = time.Now()
	return true
}

// FPS returns the last measured frame rate
func (h *HUD) FPS() float64 {
	return h.fps
}

// Render draws the HUD over the terminal
func (h *HUD) Render(width, height int, vs *viewState, stats render.FrameStats, draw soft.DrawStats) {
	const (
		reset     = "\x1b[0m"
		bold      = "\x1b[1m"
		dim       = "\x1b[2m"
		bgBlack   = "\x1b[40m"
		fgWhite   = "\x1b[97m"
		fgGreen   = "\x1b[92m"
		fgYellow  = "\x1b[93m"
		fgCyan    = "\x1b[96m"
		clearLine = "\x1b[2K"
	)

	moveTo := func(row, col int) string {
		return fmt.Sprintf("\x1b[%d;%dH", row, col)
	}

	// Always clear the HUD rows so toggling off works
	fmt.Fprint(h.out, moveTo(1, 1)+clearLine)
	fmt.Fprint(h.out, moveTo(height, 1)+clearLine)

	if !vs.showHUD {
		return
	}

	fmt.Fprintf(h.out, "%s%s%s %.0f FPS %s", moveTo(1, 1), bgBlack, fgGreen, h.fps, reset)

	titleCol := max((width-len(h.filename)-2)/2, 1)
	fmt.Fprintf(h.out, "%s%s%s%s %s %s", moveTo(1, titleCol), bold, bgBlack, fgWhite, h.filename, reset)

	counts := fmt.Sprintf("%d/%d visible %d draws %d tris", stats.Visible, stats.Objects, stats.DrawCalls, draw.Triangles)
	countCol := max(width-len(counts)-1, 1)
	fmt.Fprintf(h.out, "%s%s%s%s %s %s", moveTo(1, countCol), bgBlack, fgCyan, bold, counts, reset)

	check := func(on bool) string {
		if on {
			return "[✓]"
		}
		return "[ ]"
	}
	modes := fmt.Sprintf("%s%s %s Tonemap  %s Deferred  cull:%s %s",
		bgBlack, fgWhite, check(vs.tonemap), check(vs.deferred), vs.cull, reset)
	fmt.Fprint(h.out, moveTo(height, 1)+modes)

	if h.status != "" {
		statusCol := max(width-len(h.status)-1, 1)
		fmt.Fprintf(h.out, "%s%s%s%s %s %s", moveTo(height, statusCol), bgBlack, dim, fgYellow, h.status, reset)
	}
}
