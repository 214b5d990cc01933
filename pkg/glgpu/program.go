package glgpu

import (
	"bufio"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-gl/gl/v4.5-core/gl"
)

// Debug and post-processing defines understood by lit.frag.
const (
	DefineTonemap     = "TONEMAP"
	DefineDebugAlbedo = "DEBUG_ALBEDO"
	DefineDebugNormal = "DEBUG_NORMAL"
)

// program is a linked GL program.
type program struct {
	id uint32
}

func (p *program) Bind() error {
	gl.UseProgram(p.id)
	return checkError("use program")
}

func (p *program) Release() {
	gl.DeleteProgram(p.id)
}

func newProgram(shaders fs.FS, frag, vert string, defines []string) (*program, error) {
	vsrc, err := shaderSource(shaders, vert, defines)
	if err != nil {
		return nil, err
	}
	fsrc, err := shaderSource(shaders, frag, defines)
	if err != nil {
		return nil, err
	}

	vid, err := compileShader(vsrc, gl.VERTEX_SHADER)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", vert, err)
	}
	defer gl.DeleteShader(vid)
	fid, err := compileShader(fsrc, gl.FRAGMENT_SHADER)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", frag, err)
	}
	defer gl.DeleteShader(fid)

	id := gl.CreateProgram()
	gl.AttachShader(id, vid)
	gl.AttachShader(id, fid)
	gl.LinkProgram(id)

	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(id, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(id, logLen, nil, gl.Str(log))
		gl.DeleteProgram(id)
		return nil, fmt.Errorf("link %s + %s: %v", vert, frag, strings.TrimRight(log, "\x00"))
	}
	return &program{id: id}, nil
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile failed: %v", strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}

// shaderSource reads name from shaders and inserts one #define line per
// define right after the #version directive.
func shaderSource(shaders fs.FS, name string, defines []string) (string, error) {
	data, err := fs.ReadFile(shaders, name)
	if err != nil {
		return "", fmt.Errorf("read shader: %w", err)
	}
	return injectDefines(string(data), defines), nil
}

func injectDefines(src string, defines []string) string {
	if len(defines) == 0 {
		return src
	}
	var block strings.Builder
	for _, d := range defines {
		fmt.Fprintf(&block, "#define %s\n", d)
	}

	var out strings.Builder
	out.Grow(len(src) + block.Len())
	injected := false
	sc := bufio.NewScanner(strings.NewReader(src))
	for sc.Scan() {
		line := sc.Text()
		out.WriteString(line)
		out.WriteByte('\n')
		if !injected && strings.HasPrefix(strings.TrimSpace(line), "#version") {
			out.WriteString(block.String())
			injected = true
		}
	}
	if !injected {
		return block.String() + out.String()
	}
	return out.String()
}
