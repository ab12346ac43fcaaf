package bundler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEmitter_DeliversInOrder(t *testing.T) {
	e := NewEmitter()

	var got []EventCode
	remove := e.OnEvent(func(ev Event) { got = append(got, ev.Code) })
	defer remove()

	e.Emit(Event{Code: EventStart})
	e.Emit(Event{Code: EventBundleStart})
	e.Emit(Event{Code: EventBundleEnd})
	e.Emit(Event{Code: EventEnd})

	assert.Equal(t, []EventCode{EventStart, EventBundleStart, EventBundleEnd, EventEnd}, got)
}

func TestEmitter_RemoveStopsDelivery(t *testing.T) {
	e := NewEmitter()

	calls := 0
	remove := e.OnEvent(func(Event) { calls++ })
	e.Emit(Event{Code: EventEnd})
	remove()
	remove()
	e.Emit(Event{Code: EventEnd})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, e.Listeners())
}

func TestEmitter_ListenerCanRemoveItself(t *testing.T) {
	e := NewEmitter()

	calls := 0
	var remove func()
	remove = e.OnEvent(func(Event) {
		calls++
		remove()
	})
	other := 0
	defer e.OnEvent(func(Event) { other++ })()

	e.Emit(Event{Code: EventEnd})
	e.Emit(Event{Code: EventEnd})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, other)
}

func TestEmitter_ReplaysToFirstSubscriber(t *testing.T) {
	e := NewEmitter()
	e.Emit(Event{Code: EventStart})
	e.Emit(Event{Code: EventEnd})

	var first []EventCode
	defer e.OnEvent(func(ev Event) { first = append(first, ev.Code) })()

	var second []EventCode
	defer e.OnEvent(func(ev Event) { second = append(second, ev.Code) })()

	assert.Equal(t, []EventCode{EventStart, EventEnd}, first)
	assert.Empty(t, second)
}

func TestEmitter_HoldsOnlyLatestCycle(t *testing.T) {
	e := NewEmitter()
	e.Emit(Event{Code: EventStart})
	e.Emit(Event{Code: EventEnd})
	e.Emit(Event{Code: EventStart})
	e.Emit(Event{Code: EventBundleStart})

	var got []EventCode
	defer e.OnEvent(func(ev Event) { got = append(got, ev.Code) })()

	// The earlier END must not be mistaken for the rebuild in progress.
	assert.Equal(t, []EventCode{EventStart, EventBundleStart}, got)
}

func TestEmitter_ConcurrentEmit(t *testing.T) {
	e := NewEmitter()

	var mu sync.Mutex
	count := 0
	defer e.OnEvent(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e.Emit(Event{Code: EventEnd})
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 800, count)
}

func TestOptions_WithDefaults(t *testing.T) {
	o := Options{Root: "/p"}.WithDefaults()

	assert.Equal(t, "/", o.Base)
	assert.Equal(t, "dist", o.OutDir)
	assert.Equal(t, DefaultDevPort, o.Port)
	assert.NotNil(t, o.Logger)

	o = Options{Base: "/app/", OutDir: "out", Port: 9000}.WithDefaults()
	assert.Equal(t, "/app/", o.Base)
	assert.Equal(t, "out", o.OutDir)
	assert.Equal(t, 9000, o.Port)
}
