package content

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/atotto/clipboard"
)

// Clipboard copies text to the system clipboard, falling back to an OSC 52
// escape sequence on terminals without a clipboard utility (SSH sessions).
type Clipboard struct {
	// Fallback receives the OSC 52 sequence. Nil disables the fallback.
	Fallback io.Writer
	// Logf receives copy failures.
	Logf func(format string, args ...interface{})

	write func(string) error
}

// NewClipboard creates a Clipboard writing OSC 52 to fallback when the
// system clipboard is unavailable.
func NewClipboard(fallback io.Writer, logf func(format string, args ...interface{})) *Clipboard {
	return &Clipboard{Fallback: fallback, Logf: logf, write: clipboard.WriteAll}
}

// Copy writes text and reports whether it reached a clipboard. Failures are
// logged and never returned; the caller shows a transient indicator only.
func (c *Clipboard) Copy(text string) bool {
	write := c.write
	if write == nil {
		write = clipboard.WriteAll
	}
	if !clipboard.Unsupported {
		err := write(text)
		if err == nil {
			return true
		}
		c.log("system clipboard: %v", err)
	}

	if c.Fallback == nil {
		return false
	}
	if _, err := fmt.Fprint(c.Fallback, OSC52(text)); err != nil {
		c.log("osc52 clipboard: %v", err)
		return false
	}
	return true
}

// OSC52 returns the terminal escape that sets the clipboard to text.
func OSC52(text string) string {
	return "\033]52;c;" + base64.StdEncoding.EncodeToString([]byte(text)) + "\a"
}

func (c *Clipboard) log(format string, args ...interface{}) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}
