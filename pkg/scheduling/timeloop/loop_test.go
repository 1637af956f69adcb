package timeloop

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/InkSha/time-loop/internal/testutil"
	tlerrors "github.com/InkSha/time-loop/pkg/common/errors"
	"github.com/InkSha/time-loop/pkg/scheduling/engine"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type harness struct {
	loop   *Loop
	engine *engine.Manual
	clock  *testutil.MockClock
}

func newHarness(t *testing.T, configure ...func(*Config)) *harness {
	t.Helper()

	h := &harness{
		engine: engine.NewManual(),
		clock:  testutil.NewMockClock(epoch),
	}
	cfg := Config{Engine: h.engine, Clock: h.clock, Location: time.UTC}
	for _, c := range configure {
		c(&cfg)
	}

	h.loop = NewWithConfig(cfg)
	h.loop.Run()
	t.Cleanup(func() { <-h.loop.Close() })
	return h
}

// tickAt moves the clock to epoch+offset and runs one pass.
func (h *harness) tickAt(offset time.Duration) {
	h.clock.Set(epoch.Add(offset))
	h.engine.Tick()
}

func counting(n *int32) Func {
	return func(context.Context, time.Time) error {
		atomic.AddInt32(n, 1)
		return nil
	}
}

func mustRegister(t *testing.T, l *Loop, tasks ...Task) Disposer {
	t.Helper()
	dispose, err := l.Register(tasks...)
	testutil.AssertNoError(t, err)
	return dispose
}

func TestRegister_DuplicateName(t *testing.T) {
	h := newHarness(t)

	var first int32
	mustRegister(t, h.loop, Task{Name: "a", Fn: counting(&first)})

	_, err := h.loop.Register(Task{Name: "a", Fn: counting(&first)})
	if !tlerrors.IsRepeatTask(err) {
		t.Fatalf("expected repeat task error, got %v", err)
	}

	var rerr *tlerrors.RepeatTaskError
	if !errors.As(err, &rerr) || rerr.Name != "a" {
		t.Errorf("error should name the task, got %v", err)
	}
	testutil.AssertEqual(t, len(h.loop.Tasks()), 1)
}

func TestRegister_ReplaceStopsOldTask(t *testing.T) {
	h := newHarness(t)

	var oldRuns, newRuns int32
	mustRegister(t, h.loop, Task{Name: "a", Fn: counting(&oldRuns)})

	h.tickAt(0)
	testutil.AssertEqual(t, atomic.LoadInt32(&oldRuns), int32(1))

	mustRegister(t, h.loop, Task{Name: "a", Replace: true, Fn: counting(&newRuns)})
	testutil.AssertEqual(t, h.loop.HasTask("a"), true)

	for i := 1; i <= 3; i++ {
		h.tickAt(time.Duration(i) * time.Second)
	}

	testutil.AssertEqual(t, atomic.LoadInt32(&oldRuns), int32(1))
	testutil.AssertEqual(t, atomic.LoadInt32(&newRuns), int32(3))
	testutil.AssertEqual(t, len(h.loop.Tasks()), 1)
}

func TestRegister_ReplaceWithinBatchKeepsBatchTasks(t *testing.T) {
	h := newHarness(t)

	var old, first, second int32
	mustRegister(t, h.loop, Task{Name: "a", Fn: counting(&old)})
	mustRegister(t, h.loop,
		Task{Name: "a", Replace: true, Fn: counting(&first)},
		Task{Name: "a", Replace: true, Fn: counting(&second)},
	)

	h.tickAt(time.Second)
	testutil.AssertEqual(t, atomic.LoadInt32(&old), int32(0))
	testutil.AssertEqual(t, atomic.LoadInt32(&first), int32(1))
	testutil.AssertEqual(t, atomic.LoadInt32(&second), int32(1))
	testutil.AssertEqual(t, len(h.loop.Tasks()), 2)
}

func TestRegister_KeepAliveDuplicateIsSkipped(t *testing.T) {
	h := newHarness(t)

	var original, incoming int32
	mustRegister(t, h.loop, Task{Name: "k", KeepAlive: true, Fn: counting(&original)})
	mustRegister(t, h.loop, Task{Name: "k", KeepAlive: true, Fn: counting(&incoming)})

	testutil.AssertEqual(t, len(h.loop.Tasks()), 1)

	h.tickAt(0)
	testutil.AssertEqual(t, atomic.LoadInt32(&original), int32(1))
	testutil.AssertEqual(t, atomic.LoadInt32(&incoming), int32(0))
}

func TestRegister_FailedBatchInsertsNothing(t *testing.T) {
	h := newHarness(t)

	var n int32
	mustRegister(t, h.loop, Task{Name: "a", Fn: counting(&n)})

	_, err := h.loop.Register(
		Task{Name: "b", Fn: counting(&n)},
		Task{Name: "c", Replace: true, Fn: counting(&n)},
		Task{Name: "a", Fn: counting(&n)},
	)
	testutil.AssertError(t, err)

	testutil.AssertEqual(t, h.loop.HasTask("b"), false)
	testutil.AssertEqual(t, h.loop.HasTask("c"), false)
	for _, info := range h.loop.Tasks() {
		if info.Pending {
			t.Errorf("task %q should not be queued for removal", info.Name)
		}
	}
}

func TestRegister_Validation(t *testing.T) {
	noop := func(context.Context, time.Time) error { return nil }

	tests := []struct {
		name string
		task Task
	}{
		{"empty name", Task{Fn: noop}},
		{"nil fn", Task{Name: "x"}},
		{"negative interval", Task{Name: "x", Interval: -time.Second, Fn: noop}},
		{"negative delay", Task{Name: "x", Delay: -time.Second, Fn: noop}},
		{"interval and cron", Task{Name: "x", Interval: time.Second, Cron: "@every 1s", Fn: noop}},
		{"bad cron", Task{Name: "x", Cron: "not a cron", Fn: noop}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			_, err := h.loop.Register(Task{Name: "ok", Fn: noop}, tt.task)
			if !tlerrors.IsValidationError(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			testutil.AssertEqual(t, h.loop.HasTask("ok"), false)
		})
	}
}

func TestOnce_FiresExactlyOnce(t *testing.T) {
	h := newHarness(t)

	var runs int32
	mustRegister(t, h.loop, Task{Name: "once", Once: true, Count: 10, Fn: counting(&runs)})

	h.tickAt(0)
	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(1))
	// Removal is queued, not applied.
	testutil.AssertEqual(t, h.loop.HasTask("once"), true)

	h.tickAt(time.Second)
	testutil.AssertEqual(t, h.loop.HasTask("once"), false)

	for i := 2; i < 6; i++ {
		h.tickAt(time.Duration(i) * time.Second)
	}
	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(1))
}

func TestCount_LimitsRuns(t *testing.T) {
	h := newHarness(t)

	var runs int32
	mustRegister(t, h.loop, Task{Name: "three", Count: 3, Fn: counting(&runs)})

	for i := 0; i < 6; i++ {
		h.tickAt(time.Duration(i) * time.Second)
	}

	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(3))
	testutil.AssertEqual(t, h.loop.HasTask("three"), false)
}

func TestUnlimitedTaskRunsEveryPass(t *testing.T) {
	h := newHarness(t)

	var runs int32
	mustRegister(t, h.loop, Task{Name: "poll", Fn: counting(&runs)})

	for i := 0; i < 5; i++ {
		h.tickAt(time.Duration(i) * 10 * time.Millisecond)
	}

	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(5))
	testutil.AssertEqual(t, h.loop.Tasks()[0].Remaining, -1)
}

func TestInterval_Gating(t *testing.T) {
	h := newHarness(t)

	var runs int32
	mustRegister(t, h.loop, Task{Name: "every2s", Interval: 2 * time.Second, Fn: counting(&runs)})

	steps := []struct {
		at   time.Duration
		want int32
	}{
		{500 * time.Millisecond, 0},
		{2000 * time.Millisecond, 1},
		{3000 * time.Millisecond, 1},
		{3999 * time.Millisecond, 1},
		{4000 * time.Millisecond, 2},
	}

	for _, s := range steps {
		h.tickAt(s.at)
		if got := atomic.LoadInt32(&runs); got != s.want {
			t.Fatalf("at %v: runs = %d, want %d", s.at, got, s.want)
		}
	}
}

func TestInterval_WithDelay(t *testing.T) {
	h := newHarness(t)

	var runs int32
	mustRegister(t, h.loop, Task{Name: "late", Interval: time.Second, Delay: time.Second, Fn: counting(&runs)})

	h.tickAt(1500 * time.Millisecond)
	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(0))

	h.tickAt(2000 * time.Millisecond)
	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(1))
}

func TestDelay_PostponesFirstRun(t *testing.T) {
	h := newHarness(t)

	var runs int32
	mustRegister(t, h.loop, Task{Name: "delayed", Delay: time.Second, Fn: counting(&runs)})

	h.tickAt(0)
	h.tickAt(999 * time.Millisecond)
	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(0))

	h.tickAt(time.Second)
	h.tickAt(1100 * time.Millisecond)
	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(2))
}

func TestCron_Gating(t *testing.T) {
	h := newHarness(t)

	var runs int32
	mustRegister(t, h.loop, Task{Name: "cron", Cron: "@every 2s", Fn: counting(&runs)})

	next := h.loop.Tasks()[0].NextRun
	testutil.AssertEqual(t, next, epoch.Add(2*time.Second))

	h.tickAt(time.Second)
	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(0))

	h.tickAt(2 * time.Second)
	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(1))

	h.tickAt(3 * time.Second)
	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(1))

	h.tickAt(4 * time.Second)
	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(2))
}

func TestChangePathname_InertFromEmpty(t *testing.T) {
	h := newHarness(t)

	var runs int32
	mustRegister(t, h.loop, Task{Name: "page", Fn: counting(&runs)})

	h.loop.ChangePathname("X")
	testutil.AssertEqual(t, h.loop.Pathname(), "")

	h.loop.ChangePathname("Y")
	testutil.AssertEqual(t, h.loop.Pathname(), "")

	h.tickAt(0)
	testutil.AssertEqual(t, h.loop.HasTask("page"), true)
	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(1))
}

func TestChangePathname_KeepAliveSurvives(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Pathname = "/home" })

	var pageRuns, keptRuns int32
	mustRegister(t, h.loop,
		Task{Name: "page", Fn: counting(&pageRuns)},
		Task{Name: "session", KeepAlive: true, Fn: counting(&keptRuns)},
	)

	h.loop.ChangePathname("/home")
	h.tickAt(0)
	testutil.AssertEqual(t, h.loop.HasTask("page"), true)

	h.loop.ChangePathname("/about")
	testutil.AssertEqual(t, h.loop.Pathname(), "/about")
	testutil.AssertEqual(t, h.loop.HasTask("page"), true)

	h.tickAt(time.Second)
	testutil.AssertEqual(t, h.loop.HasTask("page"), false)
	testutil.AssertEqual(t, h.loop.HasTask("session"), true)
	testutil.AssertEqual(t, atomic.LoadInt32(&pageRuns), int32(1))
	testutil.AssertEqual(t, atomic.LoadInt32(&keptRuns), int32(2))
}

func TestUnregister_FromInsideCallback(t *testing.T) {
	h := newHarness(t)

	var secondRuns int32
	mustRegister(t, h.loop,
		Task{Name: "first", Fn: func(context.Context, time.Time) error {
			h.loop.Unregister("second")
			return nil
		}},
		Task{Name: "second", Fn: counting(&secondRuns)},
	)

	h.tickAt(0)
	testutil.AssertEqual(t, atomic.LoadInt32(&secondRuns), int32(1))
	testutil.AssertEqual(t, h.loop.HasTask("second"), true)

	h.tickAt(time.Second)
	testutil.AssertEqual(t, h.loop.HasTask("second"), false)
	testutil.AssertEqual(t, atomic.LoadInt32(&secondRuns), int32(1))
}

func TestUnregister_UnknownNameIsNoop(t *testing.T) {
	h := newHarness(t)

	var runs int32
	mustRegister(t, h.loop, Task{Name: "a", Fn: counting(&runs)})

	h.loop.Unregister("missing")
	h.loop.Unregister("missing")
	h.tickAt(0)

	testutil.AssertEqual(t, h.loop.HasTask("a"), true)
	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(1))
}

func TestDisposer_RemovesWholeBatch(t *testing.T) {
	h := newHarness(t)

	var n int32
	mustRegister(t, h.loop, Task{Name: "other", Fn: counting(&n)})
	dispose := mustRegister(t, h.loop,
		Task{Name: "t1", Fn: counting(&n)},
		Task{Name: "t2", Fn: counting(&n)},
	)

	dispose()
	testutil.AssertEqual(t, h.loop.HasTask("t1"), true)

	infos := h.loop.Tasks()
	testutil.AssertEqual(t, infos[0].Pending, false)
	testutil.AssertEqual(t, infos[1].Pending, true)
	testutil.AssertEqual(t, infos[2].Pending, true)

	h.tickAt(0)
	testutil.AssertEqual(t, h.loop.HasTask("t1"), false)
	testutil.AssertEqual(t, h.loop.HasTask("t2"), false)
	testutil.AssertEqual(t, h.loop.HasTask("other"), true)
}

func TestPass_RunsInRegistrationOrder(t *testing.T) {
	h := newHarness(t)

	order := testutil.NewCallbackTracker()
	for _, name := range []string{"c", "a", "b"} {
		name := name
		mustRegister(t, h.loop, Task{Name: name, Fn: func(context.Context, time.Time) error {
			order.Mark(name)
			return nil
		}})
	}

	h.tickAt(0)

	got := order.Values()
	want := []interface{}{"c", "a", "b"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestPass_PassesTimestamp(t *testing.T) {
	h := newHarness(t)

	seen := testutil.NewCallbackTracker()
	mustRegister(t, h.loop, Task{Name: "ts", Fn: func(_ context.Context, now time.Time) error {
		seen.Mark(now)
		return nil
	}})

	h.tickAt(1234 * time.Millisecond)
	testutil.AssertEqual(t, seen.Value().(time.Time), epoch.Add(1234*time.Millisecond))
}

func TestPass_TaskRegisteredDuringPassRunsNextPass(t *testing.T) {
	h := newHarness(t)

	var childRuns int32
	mustRegister(t, h.loop, Task{Name: "parent", Once: true, Fn: func(context.Context, time.Time) error {
		_, err := h.loop.Register(Task{Name: "child", Fn: counting(&childRuns)})
		return err
	}})

	h.tickAt(0)
	testutil.AssertEqual(t, h.loop.HasTask("child"), true)
	testutil.AssertEqual(t, atomic.LoadInt32(&childRuns), int32(0))

	h.tickAt(time.Second)
	testutil.AssertEqual(t, atomic.LoadInt32(&childRuns), int32(1))
}

func TestFailure_DoesNotConsumeCount(t *testing.T) {
	var handled []string
	h := newHarness(t, func(c *Config) {
		c.ErrorHandler = func(name string, err error) {
			handled = append(handled, name)
		}
	})

	var attempts, afterRuns int32
	mustRegister(t, h.loop,
		Task{Name: "flaky", Once: true, Fn: func(context.Context, time.Time) error {
			if atomic.AddInt32(&attempts, 1) == 1 {
				return errors.New("not yet")
			}
			return nil
		}},
		Task{Name: "after", Fn: counting(&afterRuns)},
	)

	h.tickAt(0)
	testutil.AssertEqual(t, atomic.LoadInt32(&afterRuns), int32(1))
	testutil.AssertEqual(t, len(handled), 1)

	h.tickAt(time.Second)
	h.tickAt(2 * time.Second)
	h.tickAt(3 * time.Second)

	testutil.AssertEqual(t, atomic.LoadInt32(&attempts), int32(2))
	testutil.AssertEqual(t, h.loop.HasTask("flaky"), false)
	testutil.AssertEqual(t, len(handled), 1)
}

func TestFailure_PanicIsRecovered(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	var got error
	h := newHarness(t, func(c *Config) {
		c.Logger = &logger
		c.ErrorHandler = func(_ string, err error) { got = err }
	})

	var afterRuns int32
	mustRegister(t, h.loop,
		Task{Name: "boom", Fn: func(context.Context, time.Time) error { panic("kaboom") }},
		Task{Name: "after", Fn: counting(&afterRuns)},
	)

	h.tickAt(0)

	testutil.AssertEqual(t, atomic.LoadInt32(&afterRuns), int32(1))
	var opErr *tlerrors.OperationError
	if !errors.As(got, &opErr) || opErr.Operation != "boom" {
		t.Fatalf("expected OperationError for boom, got %v", got)
	}
	if !strings.Contains(buf.String(), `"message":"task failed"`) {
		t.Errorf("failure not logged: %s", buf.String())
	}
}

func TestFailure_LogIsThrottled(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	h := newHarness(t, func(c *Config) {
		c.Logger = &logger
		c.ErrorLogRate = 0.0001
		c.ErrorLogBurst = 2
	})

	mustRegister(t, h.loop, Task{Name: "bad", Fn: func(context.Context, time.Time) error {
		return errors.New("always")
	}})

	for i := 0; i < 10; i++ {
		h.tickAt(time.Duration(i) * time.Millisecond)
	}

	testutil.AssertEqual(t, strings.Count(buf.String(), "task failed"), 2)
}

func TestClose_KeepsRegistry(t *testing.T) {
	h := newHarness(t)

	var runs int32
	mustRegister(t, h.loop, Task{Name: "a", Fn: counting(&runs)})

	<-h.loop.Close()
	if h.engine.Tick() {
		t.Fatal("engine should be stopped after Close")
	}
	testutil.AssertEqual(t, h.loop.HasTask("a"), true)

	// Close is idempotent.
	<-h.loop.Close()

	h.loop.Run()
	h.tickAt(0)
	testutil.AssertEqual(t, atomic.LoadInt32(&runs), int32(1))
}

func TestTasks_Snapshot(t *testing.T) {
	h := newHarness(t)

	noop := func(context.Context, time.Time) error { return nil }
	mustRegister(t, h.loop,
		Task{Name: "a", Interval: time.Second, KeepAlive: true, Fn: noop},
		Task{Name: "b", Count: 2, Delay: time.Second, Async: true, Fn: noop},
	)

	infos := h.loop.Tasks()
	testutil.AssertEqual(t, len(infos), 2)

	a, b := infos[0], infos[1]
	testutil.AssertEqual(t, a.Name, "a")
	testutil.AssertEqual(t, a.KeepAlive, true)
	testutil.AssertEqual(t, a.Remaining, -1)
	testutil.AssertEqual(t, a.NextRun, epoch.Add(time.Second))
	testutil.AssertEqual(t, b.Remaining, 2)
	testutil.AssertEqual(t, b.Async, true)
	testutil.AssertEqual(t, b.NextRun, epoch.Add(time.Second))
	testutil.AssertNotEqual(t, a.ID, b.ID)
	testutil.AssertEqual(t, len(a.ID), 26)
}

func TestNew_Defaults(t *testing.T) {
	l := New(0)
	testutil.AssertEqual(t, l.Name(), DefaultName)
	testutil.AssertEqual(t, l.MetricsEnabled(), false)
	testutil.AssertEqual(t, l.Pathname(), "")
}
