package spdm

import "testing"

func TestConnectionStateAdvanceOnlyForward(t *testing.T) {
	s := ConnectionStateAfterCapabilities
	s.AdvanceTo(ConnectionStateAfterVersion)
	if s != ConnectionStateAfterCapabilities {
		t.Errorf("AdvanceTo moved state backward: got %v", s)
	}
	s.AdvanceTo(ConnectionStateNegotiated)
	if s != ConnectionStateNegotiated {
		t.Errorf("AdvanceTo did not move state forward: got %v", s)
	}
	s.AdvanceTo(ConnectionStateNegotiated)
	if s != ConnectionStateNegotiated {
		t.Errorf("AdvanceTo to same state changed it: got %v", s)
	}
}

func TestConnectionStateStringKnownAndUnknown(t *testing.T) {
	if got := ConnectionStateNotStarted.String(); got != "NotStarted" {
		t.Errorf("String() = %q, want NotStarted", got)
	}
	if got := ConnectionState(999).String(); got != "Unknown" {
		t.Errorf("String() for out-of-range state = %q, want Unknown", got)
	}
}

func TestResponseStateString(t *testing.T) {
	if got := ResponseStateBusy.String(); got != "Busy" {
		t.Errorf("String() = %q, want Busy", got)
	}
}

func TestSessionStateString(t *testing.T) {
	if got := SessionStateEstablished.String(); got != "Established" {
		t.Errorf("String() = %q, want Established", got)
	}
}
