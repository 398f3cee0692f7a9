package raycast

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	// glfw requires the main thread.
	runtime.LockOSThread()
}

const (
	MouseButtonLeft = iota
	MouseButtonRight
	MouseButtonMiddle
	mouseButtonCount
)

// Input is the per-frame cursor and mouse state sampled from the window.
// It is the feed for cursor-driven ray sources.
type Input struct {
	Pressed      [mouseButtonCount]bool
	JustPressed  [mouseButtonCount]bool
	JustReleased [mouseButtonCount]bool

	MouseX, MouseY float64

	WindowWidth, WindowHeight int
}

// WindowState owns the glfw window. The library never renders into it; it
// exists to source cursor input and viewport dimensions.
type WindowState struct {
	windowGlfw   *glfw.Window
	WindowWidth  int
	WindowHeight int
}

// WindowModule opens a window and installs the Input resource updated every
// frame. Hosts embedding the library into their own windowing stack skip
// this module and install an Input (or Viewport) resource themselves.
type WindowModule struct {
	Title  string
	Width  int
	Height int
}

func (m WindowModule) Install(app *App, cmd *Commands) {
	if err := glfw.Init(); err != nil {
		panic(err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	width, height := m.Width, m.Height
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	title := m.Title
	if title == "" {
		title = "raycast"
	}

	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		panic(err)
	}

	cmd.AddResources(
		&WindowState{windowGlfw: window, WindowWidth: width, WindowHeight: height},
		&Input{WindowWidth: width, WindowHeight: height},
	)

	app.UseSystem(System(inputSystem).InStage(PreUpdate))
	app.UseSystem(System(windowCloseSystem).InStage(Finale))
}

func inputSystem(s *WindowState, input *Input) {
	glfw.PollEvents()

	input.MouseX, input.MouseY = s.windowGlfw.GetCursorPos()
	input.WindowWidth, input.WindowHeight = s.windowGlfw.GetSize()
	s.WindowWidth, s.WindowHeight = input.WindowWidth, input.WindowHeight

	for btn := 0; btn < mouseButtonCount; btn++ {
		var glfwBtn glfw.MouseButton
		switch btn {
		case MouseButtonLeft:
			glfwBtn = glfw.MouseButtonLeft
		case MouseButtonRight:
			glfwBtn = glfw.MouseButtonRight
		case MouseButtonMiddle:
			glfwBtn = glfw.MouseButtonMiddle
		}

		action := s.windowGlfw.GetMouseButton(glfwBtn)
		input.JustPressed[btn] = false
		input.JustReleased[btn] = false

		if action == glfw.Press {
			if !input.Pressed[btn] {
				input.JustPressed[btn] = true
			}
			input.Pressed[btn] = true
		} else if action == glfw.Release {
			if input.Pressed[btn] {
				input.JustReleased[btn] = true
			}
			input.Pressed[btn] = false
		}
	}
}

func windowCloseSystem(cmd *Commands, s *WindowState) {
	if s.windowGlfw.ShouldClose() {
		cmd.app.Quit()
	}
}
