package rtcagent

import "testing"

func TestInternerFixedControlVerbs(t *testing.T) {
	in := newInterner(nil)
	cases := map[string]interface{}{
		"AgentStarted":    evAgentStarted,
		"Play":            evPlay,
		"Pause":           evPause,
		"Stop":            evStop,
		"Reset":           evReset,
		"Heartbeat":       evHeartbeat,
		"PublishProperty": evPublishProperty,
		"State":           evState,
		"Error":           evErrorEvent,
		"AgentOnClose":    evAgentOnClose,
		"Exit":            evExit,
		"LateMessage":     evLateMessage,
		"Properties":      evProperties,
		"StatsUpdate":     evStatsUpdate,
		"GCStats":         evGCStats,
	}
	for name, want := range cases {
		got, ok := in.Lookup(name)
		if !ok {
			t.Errorf("Lookup(%q) not found", name)
			continue
		}
		if got != want {
			t.Errorf("Lookup(%q) = %v, want %v", name, got, want)
		}
		if in.Name(got) != name {
			t.Errorf("Name(%v) = %q, want %q", got, in.Name(got), name)
		}
	}
}

func TestInternerDynamicPropertyKeysAssignedAboveBase(t *testing.T) {
	in := newInterner([]string{"Volume", "TrackName"})

	volT, ok := in.Lookup("Volume")
	if !ok {
		t.Fatal("expected Volume to be interned")
	}
	if volT < evDynamicBase {
		t.Errorf("Volume event type %v should be >= evDynamicBase %v", volT, evDynamicBase)
	}
	trackT, ok := in.Lookup("TrackName")
	if !ok {
		t.Fatal("expected TrackName to be interned")
	}
	if trackT == volT {
		t.Error("distinct property keys must get distinct event types")
	}
	if in.Name(volT) != "Volume" || in.Name(trackT) != "TrackName" {
		t.Error("Name should round-trip dynamic property event types")
	}
}

func TestInternerPropertyKeyCollidingWithFixedNameKeepsFixedType(t *testing.T) {
	// A property literally named "Play" would collide with the fixed control
	// verb; newInterner must not overwrite the fixed mapping.
	in := newInterner([]string{"Play"})
	got, ok := in.Lookup("Play")
	if !ok {
		t.Fatal("expected Play to be interned")
	}
	if got != evPlay {
		t.Errorf("Lookup(\"Play\") = %v, want evPlay (%v)", got, evPlay)
	}
}

func TestInternerUnknownNameNotFound(t *testing.T) {
	in := newInterner([]string{"Volume"})
	if _, ok := in.Lookup("NoSuchEvent"); ok {
		t.Error("expected unknown event name to not be found")
	}
}
