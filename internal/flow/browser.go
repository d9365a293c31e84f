package flow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
)

// UserAgent sends the resource owner's user agent to the authorization
// endpoint. Implementations return once navigation has been initiated; the
// response is observed by the loopback receiver, not by the agent.
type UserAgent interface {
	Open(ctx context.Context, authorizationURL string) error
}

// BrowserAgent opens the system default browser.
type BrowserAgent struct {
	logger *slog.Logger
}

// NewBrowserAgent creates a BrowserAgent.
func NewBrowserAgent(logger *slog.Logger) *BrowserAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserAgent{logger: logger}
}

// Open launches the platform browser command. Failure to launch is not
// fatal to the flow by itself; callers typically print the URL as a fallback.
func (a *BrowserAgent) Open(ctx context.Context, authorizationURL string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", authorizationURL)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", authorizationURL)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", authorizationURL)
	}

	a.logger.Debug("Opening browser", "url", authorizationURL)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	// Detach; the browser process outlives the flow.
	go func() { _ = cmd.Wait() }()
	return nil
}

// PrintAgent writes the authorization URL to a writer instead of opening a
// browser. Used on headless machines where the user opens the URL elsewhere.
type PrintAgent struct {
	Out io.Writer
}

// Open prints the URL.
func (a *PrintAgent) Open(_ context.Context, authorizationURL string) error {
	_, err := fmt.Fprintf(a.Out, "Open the following URL in your browser:\n\n  %s\n\n", authorizationURL)
	return err
}
