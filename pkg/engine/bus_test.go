package engine

import (
	"context"
	"testing"

	"orbit/pkg/protocol"
)

func TestBus_DeliveryOrder(t *testing.T) {
	b := NewBus()
	var order []int
	for i := 0; i < 3; i++ {
		i := i
		b.On(protocol.EvStateChanged, func(any) { order = append(order, i) })
	}

	b.emit(protocol.EvStateChanged, nil)

	if len(order) != 3 {
		t.Fatalf("deliveries = %d, want 3", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Errorf("delivery %d went to listener %d, want registration order", i, got)
		}
	}
}

func TestBus_Off(t *testing.T) {
	b := NewBus()
	calls := 0
	sub := b.On(protocol.EvQueryReady, func(any) { calls++ })

	b.emit(protocol.EvQueryReady, nil)
	b.Off(sub)
	b.emit(protocol.EvQueryReady, nil)

	if calls != 1 {
		t.Errorf("calls = %d, want 1 after Off", calls)
	}

	// Double-off and unknown subscriptions are harmless.
	b.Off(sub)
	b.Off(Subscription{name: protocol.EvQueryReady, id: 999})
}

func TestBus_Once(t *testing.T) {
	b := NewBus()
	calls := 0
	b.Once(protocol.EvMissionPaused, func(any) { calls++ })

	b.emit(protocol.EvMissionPaused, nil)
	b.emit(protocol.EvMissionPaused, nil)

	if calls != 1 {
		t.Errorf("calls = %d, want once-listener fired exactly 1", calls)
	}
}

func TestBus_OnceReregisterInsideCallback(t *testing.T) {
	b := NewBus()
	calls := 0
	var register func()
	register = func() {
		b.Once(protocol.EvMissionResumed, func(any) {
			calls++
			if calls < 3 {
				register()
			}
		})
	}
	register()

	// Each emit fires the current once-listener exactly once, even though the
	// callback registers its replacement mid-delivery.
	for i := 0; i < 3; i++ {
		b.emit(protocol.EvMissionResumed, nil)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestBus_EmitUnknownName(t *testing.T) {
	b := NewBus()
	b.emit(protocol.EvWorkflowAdvanced, nil) // no listeners, no panic
}

func TestBus_PayloadDelivered(t *testing.T) {
	b := NewBus()
	var got any
	b.On(protocol.EvPhaseTransition, func(p any) { got = p })

	want := PhaseTransitioned{MissionID: "M1", From: protocol.PhaseIdle, To: protocol.PhaseExecution}
	b.emit(protocol.EvPhaseTransition, want)

	pt, ok := got.(PhaseTransitioned)
	if !ok || pt != want {
		t.Errorf("payload = %#v, want %#v", got, want)
	}
}

func TestEngine_StateChangedFiresPerMutation(t *testing.T) {
	fx := newTestEngine(t, Config{})
	changed := busEvents(fx.engine, protocol.EvStateChanged)

	if _, err := fx.engine.StartMission(context.Background(), "M1", StartOptions{}); err != nil {
		t.Fatal(err)
	}
	if len(*changed) != 1 {
		t.Fatalf("stateChanged events = %d, want 1", len(*changed))
	}

	// A no-op mutation fires nothing.
	if _, err := fx.engine.PauseMission(context.Background(), "ghost", PauseOptions{}); err != nil {
		t.Fatal(err)
	}
	if len(*changed) != 1 {
		t.Errorf("stateChanged events = %d after no-op, want still 1", len(*changed))
	}
}
