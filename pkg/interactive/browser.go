package interactive

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Window is a browsing context opened for the flow.
type Window interface {
	// Closed reports whether the user closed the context.
	Closed() bool
}

// Opener opens a URL in a new browsing context. A nil Window means closure
// cannot be observed.
type Opener interface {
	Open(url string) (Window, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) (Window, error)

// Open implements Opener.
func (f OpenerFunc) Open(url string) (Window, error) {
	return f(url)
}

// BrowserOpener opens URLs in the system's default browser. It supports
// Linux, macOS and Windows. The browser runs detached, so its window
// can't be observed.
var BrowserOpener Opener = OpenerFunc(func(url string) (Window, error) {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to open browser: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil, nil
})
