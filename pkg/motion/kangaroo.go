// Package motion drives the unit through a Kangaroo x2 motion controller in
// simple-serial mode and keeps the shared telemetry in step with the commands
// it issues.
package motion

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	serial "go.bug.st/serial"
	"go.uber.org/zap"
)

// DefaultSettle is how long a command waits for the controller to answer.
const DefaultSettle = 100 * time.Millisecond

// Port is the serial connection to the controller. serial.Port satisfies it.
type Port interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
}

// OpenPort opens dev at baud, 8N1.
func OpenPort(dev string, baud int) (serial.Port, error) {
	p, err := serial.Open(dev, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", dev, err)
	}
	return p, nil
}

// Controller serializes command/reply exchanges on one port. Every channel
// of a Kangaroo shares the same serial line.
type Controller struct {
	mu     sync.Mutex
	port   Port
	settle time.Duration
	log    *zap.Logger
}

func NewController(port Port, settle time.Duration, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Controller{port: port, settle: settle, log: log}
}

// Channel returns the control channel with the given name: "D" (drive) or
// "T" (turn) in mixed mode, "1" or "2" in independent mode.
func (c *Controller) Channel(name string) *Channel {
	return &Channel{name: name, ctl: c}
}

// exchange writes line and returns whatever the controller sends back within
// the settle window; an empty reply is not an error.
func (c *Controller) exchange(line string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.port, line); err != nil {
		return "", fmt.Errorf("kangaroo write %q: %w", strings.TrimSpace(line), err)
	}
	c.log.Debug("kangaroo sent", zap.String("cmd", strings.TrimSpace(line)))

	if err := c.port.SetReadTimeout(c.settle); err != nil {
		return "", err
	}
	buf := make([]byte, 64)
	n, err := c.port.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("kangaroo read: %w", err)
	}
	if n == 0 {
		return "", nil
	}
	reply := string(buf[:n])
	c.log.Debug("kangaroo replied", zap.String("reply", strings.TrimSpace(reply)))
	return reply, nil
}

// Channel is one control channel of the controller.
type Channel struct {
	name string
	ctl  *Controller
}

func (ch *Channel) Name() string { return ch.name }

// Command formats a simple-serial line for this channel.
func (ch *Channel) Command(cmd string) string {
	return ch.name + ", " + cmd + "\r\n"
}

func (ch *Channel) Write(cmd string) (string, error) {
	return ch.ctl.exchange(ch.Command(cmd))
}

// Start powers the channel up; no motion command is obeyed before it.
func (ch *Channel) Start() error {
	_, err := ch.Write("start")
	return err
}

func (ch *Channel) PowerDown() error {
	_, err := ch.Write("powerdown")
	return err
}

// Units sets the user-unit ratio, e.g. "1 degree = 918842 ticks".
func (ch *Channel) Units(ratio string) error {
	_, err := ch.Write("units " + ratio)
	return err
}

// Position moves to an absolute position.
func (ch *Channel) Position(units int) error {
	_, err := ch.Write(fmt.Sprintf("p%d", units))
	return err
}

func (ch *Channel) PositionAt(units, speed int) error {
	_, err := ch.Write(fmt.Sprintf("p%d s%d", units, speed))
	return err
}

// Increment moves relative to the current position.
func (ch *Channel) Increment(units int) error {
	_, err := ch.Write(fmt.Sprintf("pi%d", units))
	return err
}

func (ch *Channel) IncrementAt(units, speed int) error {
	_, err := ch.Write(fmt.Sprintf("pi%d s%d", units, speed))
	return err
}

func (ch *Channel) Speed(units int) error {
	_, err := ch.Write(fmt.Sprintf("s%d", units))
	return err
}

func (ch *Channel) SpeedIncrement(units int) error {
	_, err := ch.Write(fmt.Sprintf("si%d", units))
	return err
}

// GetPosition returns the controller's raw reply, e.g. "D,P1200".
func (ch *Channel) GetPosition() (string, error) { return ch.Write("getp") }

func (ch *Channel) GetSpeed() (string, error) { return ch.Write("gets") }
