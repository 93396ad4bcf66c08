package mac

/*------------------------------------------------------------------
 *
 * Purpose: A pty-backed text console for watching a node's frame traffic
 *		live, timestamped the way an operator console would.
 *
 * Description: Grounded on the teacher's src/kiss.go (kisspt_open_pt, a
 *		github.com/creack/pty pseudo-terminal a KISS client attaches
 *		to) and its timestamp-prefix convention in src/xmit.go/src/tq.go
 *		(github.com/lestrrat-go/strftime formatting each logged
 *		event). Each Logf call writes one timestamped line; the
 *		duty-cycled core does not write to the console itself, so
 *		only what a caller passes to Logf appears. Nothing reads it
 *		back, so unlike the teacher's KISS pty this is output-only.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/lestrrat-go/strftime"
)

// DebugConsole is a pseudo-terminal an operator can `cat` or `screen` onto
// to watch a node's traffic, one timestamped line per event.
type DebugConsole struct {
	master *os.File
	slave  *os.File
	format *strftime.Strftime

	mu sync.Mutex
}

// NewDebugConsole opens a pty pair and returns the console; SlavePath names
// the pseudo-terminal an operator attaches to.
func NewDebugConsole(timestampFormat string) (*DebugConsole, error) {
	if timestampFormat == "" {
		timestampFormat = "%H:%M:%S"
	}
	f, err := strftime.New(timestampFormat)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp format %q: %w", timestampFormat, err)
	}

	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("opening pseudo terminal: %w", err)
	}
	return &DebugConsole{master: master, slave: slave, format: f}, nil
}

// SlavePath is the pseudo-terminal's device path an operator opens.
func (d *DebugConsole) SlavePath() string {
	return d.slave.Name()
}

// Logf writes one timestamped line describing a frame event (e.g. a
// transmission, a reception, a rejected replay). Safe for concurrent use.
func (d *DebugConsole) Logf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ts := d.format.FormatString(time.Now())
	fmt.Fprintf(d.master, "[%s] %s\n", ts, fmt.Sprintf(format, args...))
}

// Close releases both ends of the pty.
func (d *DebugConsole) Close() error {
	err1 := d.slave.Close()
	err2 := d.master.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
