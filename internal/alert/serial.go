package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"github.com/gsarma/codemate/internal/config"
)

var (
	// ErrNoDevice is returned when no port is configured and none was detected.
	ErrNoDevice = errors.New("alert: no severity meter detected")
	// ErrInvalidPercent is returned for values outside [0,100].
	ErrInvalidPercent = errors.New("alert: severity percent out of range")
)

// Status reports the meter link.
type Status struct {
	Connected bool   `json:"connected"`
	Port      string `json:"port"`
}

// detectRetry is how long a failed port auto-detection is remembered.
const detectRetry = 10 * time.Second

// Meter drives a microcontroller that displays the severity percent. The
// link is opened lazily and reopened after a write failure.
type Meter struct {
	cfg    config.HardwareConfig
	logger *zap.Logger

	open func(name string, baud int) (io.WriteCloser, error)
	find func() (string, error)
	now  func() time.Time

	mu          sync.Mutex
	conn        io.WriteCloser
	portName    string
	detectAfter time.Time

	// Latest percent waiting for the delivery goroutine.
	pendMu     sync.Mutex
	pending    *int
	delivering bool
	wg         sync.WaitGroup
}

var _ Sink = (*Meter)(nil)

// NewMeter returns a disconnected meter.
func NewMeter(cfg config.HardwareConfig, logger *zap.Logger) *Meter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Meter{
		cfg:      cfg,
		logger:   logger.Named("serial"),
		open:     openSerial,
		find:     detectPort,
		now:      time.Now,
		portName: cfg.Port,
	}
}

// Notify queues the percent of compile alerts and returns without waiting
// for the device. Only the latest undelivered percent is kept.
func (m *Meter) Notify(ctx context.Context, a Alert) error {
	if a.Kind != KindCompile {
		return nil
	}
	if a.Percent < 0 || a.Percent > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidPercent, a.Percent)
	}

	m.pendMu.Lock()
	defer m.pendMu.Unlock()
	percent := a.Percent
	m.pending = &percent
	if m.delivering {
		return nil
	}
	m.delivering = true
	m.wg.Add(1)
	go m.deliver(context.WithoutCancel(ctx))
	return nil
}

func (m *Meter) deliver(ctx context.Context) {
	defer m.wg.Done()
	for {
		m.pendMu.Lock()
		if m.pending == nil {
			m.delivering = false
			m.pendMu.Unlock()
			return
		}
		percent := *m.pending
		m.pending = nil
		m.pendMu.Unlock()

		if err := m.Send(ctx, percent); err != nil {
			m.logger.Warn("severity delivery failed", zap.Int("percent", percent), zap.Error(err))
		}
	}
}

// Send writes "<percent>\n" to the device.
func (m *Meter) Send(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidPercent, percent)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		if err := m.connect(ctx); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(m.conn, "%d\n", percent); err != nil {
		m.logger.Warn("write failed, dropping link", zap.String("port", m.portName), zap.Error(err))
		m.closeLocked()
		return fmt.Errorf("write to %s: %w", m.portName, err)
	}
	m.logger.Debug("severity sent", zap.String("port", m.portName), zap.Int("percent", percent))
	return nil
}

// Status reports whether the link is open and which port it uses.
func (m *Meter) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Connected: m.conn != nil, Port: m.portName}
}

// Close waits for queued deliveries and releases the port.
func (m *Meter) Close() error {
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeLocked()
}

func (m *Meter) connect(ctx context.Context) error {
	name := m.cfg.Port
	if name == "" {
		if m.now().Before(m.detectAfter) {
			return ErrNoDevice
		}
		detected, err := m.find()
		if err != nil {
			m.detectAfter = m.now().Add(detectRetry)
			return err
		}
		name = detected
	}
	m.portName = name

	conn, err := m.open(name, m.cfg.BaudRate)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}

	// Opening the port resets most boards; give the firmware time to boot.
	if m.cfg.ResetDelay > 0 {
		t := time.NewTimer(m.cfg.ResetDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			conn.Close()
			return ctx.Err()
		}
	}

	m.conn = conn
	m.logger.Info("connected to severity meter", zap.String("port", name), zap.Int("baud", m.cfg.BaudRate))
	return nil
}

func (m *Meter) closeLocked() error {
	if m.conn == nil {
		return nil
	}
	err := m.conn.Close()
	m.conn = nil
	return err
}

func openSerial(name string, baud int) (io.WriteCloser, error) {
	return serial.Open(name, &serial.Mode{BaudRate: baud})
}

func detectPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("enumerate serial ports: %w", err)
	}
	if name, ok := pickPort(ports); ok {
		return name, nil
	}
	return "", ErrNoDevice
}

func pickPort(ports []*enumerator.PortDetails) (string, bool) {
	for _, p := range ports {
		if strings.Contains(p.Product, "Arduino") ||
			strings.Contains(p.Name, "ttyACM") ||
			strings.Contains(p.Name, "usbmodem") {
			return p.Name, true
		}
	}
	return "", false
}
