package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/onyxdevs/subzilla-sub000/pkg/subtitle"
)

// MockHooks is a testify mock of the subtitle.Hooks interface. Configure
// expectations with .On("OnFileStatusUpdate", ...) etc.
type MockHooks struct {
	mock.Mock
}

func (m *MockHooks) OnFileDiscovered(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockHooks) OnFileStatusUpdate(path string, status subtitle.Status, message string, duration time.Duration) error {
	args := m.Called(path, status, message, duration)
	return args.Error(0)
}

func (m *MockHooks) OnRunComplete(stats subtitle.BatchStats) error {
	args := m.Called(stats)
	return args.Error(0)
}

// CountingProcessFunc wraps a ProcessFunc, counting invocations. Attempt
// counting must be race-free because parallel chunks call it concurrently.
type CountingProcessFunc struct {
	calls atomic.Int64
	fn    subtitle.ProcessFunc
}

// NewCountingProcessFunc wraps fn; a nil fn succeeds immediately.
func NewCountingProcessFunc(fn subtitle.ProcessFunc) *CountingProcessFunc {
	if fn == nil {
		fn = func(ctx context.Context, input, output string, opts subtitle.ConversionOptions) (subtitle.Result, error) {
			return subtitle.Result{OutputPath: output}, nil
		}
	}
	return &CountingProcessFunc{fn: fn}
}

// Process is the subtitle.ProcessFunc to inject.
func (c *CountingProcessFunc) Process(ctx context.Context, input, output string, opts subtitle.ConversionOptions) (subtitle.Result, error) {
	c.calls.Add(1)
	return c.fn(ctx, input, output, opts)
}

// Calls reports how many attempts were observed.
func (c *CountingProcessFunc) Calls() int {
	return int(c.calls.Load())
}

// FlakyProcessFunc fails the first failures attempts per run, then succeeds.
func FlakyProcessFunc(failures int, err error) subtitle.ProcessFunc {
	var calls atomic.Int64
	return func(ctx context.Context, input, output string, opts subtitle.ConversionOptions) (subtitle.Result, error) {
		if calls.Add(1) <= int64(failures) {
			return subtitle.Result{}, err
		}
		return subtitle.Result{OutputPath: output}, nil
	}
}
