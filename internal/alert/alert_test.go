package alert

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSink struct {
	mu   sync.Mutex
	got  []Alert
	fail error
}

func (r *recordingSink) Notify(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, a)
	return r.fail
}

func TestFanout_DeliversToEverySink(t *testing.T) {
	ok := &recordingSink{}
	broken := &recordingSink{fail: errors.New("unplugged")}
	core, logs := observer.New(zapcore.WarnLevel)

	f := NewFanout(zap.New(core), ok, nil, broken)
	a := Alert{Kind: KindCompile, ErrorType: "Syntax Error", Percent: 85, Message: "Found 1 errors"}
	err := f.Notify(context.Background(), a)

	assert.EqualError(t, err, "unplugged")
	assert.Equal(t, []Alert{a}, ok.got)
	assert.Equal(t, []Alert{a}, broken.got)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "alert sink failed", logs.All()[0].Message)
}

func TestFanout_Empty(t *testing.T) {
	assert.NoError(t, NewFanout(nil).Notify(context.Background(), Alert{}))
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := LogSink{Logger: zap.New(core)}

	require.NoError(t, s.Notify(context.Background(), Alert{Kind: KindCompile, ErrorType: "Warning", Percent: 28}))
	entries := logs.FilterMessage("alert").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Warning", fields["error_type"])
	assert.EqualValues(t, 28, fields["percent"])

	assert.NoError(t, LogSink{}.Notify(context.Background(), Alert{}))
}
