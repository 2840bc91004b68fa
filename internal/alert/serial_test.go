package alert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"

	"github.com/gsarma/codemate/internal/config"
)

type fakeConn struct {
	bytes.Buffer
	failWrites bool
	closed     bool
}

func (f *fakeConn) Write(p []byte) (int, error) {
	if f.failWrites {
		return 0, errors.New("device unplugged")
	}
	return f.Buffer.Write(p)
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func newTestMeter(port string) (*Meter, *[]*fakeConn, *int) {
	m := NewMeter(config.HardwareConfig{Port: port, BaudRate: 9600}, nil)
	conns := &[]*fakeConn{}
	opens := new(int)
	m.open = func(name string, baud int) (io.WriteCloser, error) {
		*opens++
		c := &fakeConn{}
		*conns = append(*conns, c)
		return c, nil
	}
	m.find = func() (string, error) { return "/dev/ttyACM0", nil }
	return m, conns, opens
}

func TestMeter_LazyConnectAndWrite(t *testing.T) {
	m, conns, opens := newTestMeter("")
	assert.Equal(t, Status{}, m.Status())

	require.NoError(t, m.Send(context.Background(), 85))
	require.NoError(t, m.Send(context.Background(), 0))

	assert.Equal(t, 1, *opens)
	assert.Equal(t, "85\n0\n", (*conns)[0].String())
	assert.Equal(t, Status{Connected: true, Port: "/dev/ttyACM0"}, m.Status())

	require.NoError(t, m.Close())
	assert.True(t, (*conns)[0].closed)
	assert.False(t, m.Status().Connected)
}

func TestMeter_ReconnectsAfterWriteFailure(t *testing.T) {
	m, conns, opens := newTestMeter("COM3")

	require.NoError(t, m.Send(context.Background(), 10))
	(*conns)[0].failWrites = true
	assert.Error(t, m.Send(context.Background(), 20))
	assert.True(t, (*conns)[0].closed)
	assert.False(t, m.Status().Connected)

	require.NoError(t, m.Send(context.Background(), 30))
	assert.Equal(t, 2, *opens)
	assert.Equal(t, "30\n", (*conns)[1].String())
	assert.Equal(t, "COM3", m.Status().Port)
}

func TestMeter_Errors(t *testing.T) {
	m, _, opens := newTestMeter("")

	assert.ErrorIs(t, m.Send(context.Background(), 101), ErrInvalidPercent)
	assert.ErrorIs(t, m.Send(context.Background(), -1), ErrInvalidPercent)

	m.find = func() (string, error) { return "", ErrNoDevice }
	assert.ErrorIs(t, m.Send(context.Background(), 50), ErrNoDevice)
	m.detectAfter = time.Time{}

	m.find = func() (string, error) { return "/dev/ttyUSB0", nil }
	m.open = func(string, int) (io.WriteCloser, error) { return nil, errors.New("permission denied") }
	err := m.Send(context.Background(), 50)
	assert.ErrorContains(t, err, "open /dev/ttyUSB0")
	assert.Zero(t, *opens)
}

func TestMeter_IgnoresChatAlerts(t *testing.T) {
	m, _, opens := newTestMeter("")
	require.NoError(t, m.Notify(context.Background(), Alert{Kind: KindChat, Message: "hi"}))
	assert.Zero(t, *opens)

	require.NoError(t, m.Notify(context.Background(), Alert{Kind: KindCompile, Percent: 40}))
	require.NoError(t, m.Close())
	assert.Equal(t, 1, *opens)
}

func TestMeter_NotifyDoesNotWaitForDevice(t *testing.T) {
	m, conns, _ := newTestMeter("")
	m.cfg.ResetDelay = 300 * time.Millisecond

	start := time.Now()
	require.NoError(t, m.Notify(context.Background(), Alert{Kind: KindCompile, Percent: 85}))
	assert.Less(t, time.Since(start), m.cfg.ResetDelay)
	assert.ErrorIs(t, m.Notify(context.Background(), Alert{Kind: KindCompile, Percent: 101}), ErrInvalidPercent)

	require.NoError(t, m.Close())
	require.Len(t, *conns, 1)
	assert.Equal(t, "85\n", (*conns)[0].String())
}

func TestMeter_FailedDetectionIsRemembered(t *testing.T) {
	m, _, _ := newTestMeter("")
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	finds := 0
	m.find = func() (string, error) {
		finds++
		return "", ErrNoDevice
	}

	assert.ErrorIs(t, m.Send(context.Background(), 10), ErrNoDevice)
	assert.ErrorIs(t, m.Send(context.Background(), 20), ErrNoDevice)
	assert.Equal(t, 1, finds)

	now = now.Add(detectRetry + time.Second)
	assert.ErrorIs(t, m.Send(context.Background(), 30), ErrNoDevice)
	assert.Equal(t, 2, finds)
}

func TestPickPort(t *testing.T) {
	tests := []struct {
		name  string
		ports []*enumerator.PortDetails
		want  string
		ok    bool
	}{
		{"none", nil, "", false},
		{"acm", []*enumerator.PortDetails{{Name: "/dev/ttyS0"}, {Name: "/dev/ttyACM1"}}, "/dev/ttyACM1", true},
		{"mac", []*enumerator.PortDetails{{Name: "/dev/cu.usbmodem1421"}}, "/dev/cu.usbmodem1421", true},
		{"product", []*enumerator.PortDetails{{Name: "COM5", Product: "Arduino Uno"}}, "COM5", true},
		{"unrelated", []*enumerator.PortDetails{{Name: "/dev/ttyUSB0", Product: "CP2102"}}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickPort(tt.ports)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
