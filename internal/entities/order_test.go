package entities

import (
	"errors"
	"testing"
)

func allStatuses() []Status {
	return []Status{
		StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusAssigned, StatusPickedUp, StatusDelivered, StatusCancelled,
	}
}

func TestCanTransition_ExhaustiveMatrix(t *testing.T) {
	legal := map[Status]map[Status]bool{
		StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
		StatusConfirmed: {StatusPreparing: true, StatusCancelled: true},
		StatusPreparing: {StatusReady: true, StatusCancelled: true},
		StatusReady:     {StatusAssigned: true, StatusCancelled: true},
		StatusAssigned:  {StatusPickedUp: true, StatusCancelled: true},
		StatusPickedUp:  {StatusDelivered: true, StatusCancelled: true},
		StatusDelivered: {},
		StatusCancelled: {},
	}

	for _, from := range allStatuses() {
		for _, to := range allStatuses() {
			want := legal[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, from := range []Status{StatusDelivered, StatusCancelled} {
		for _, to := range allStatuses() {
			if CanTransition(from, to) {
				t.Errorf("terminal %s must not transition to %s", from, to)
			}
		}
	}
}

func TestNeedsDriver(t *testing.T) {
	withDriver := map[Status]bool{
		StatusAssigned:  true,
		StatusPickedUp:  true,
		StatusDelivered: true,
	}
	for _, s := range allStatuses() {
		if got := s.NeedsDriver(); got != withDriver[s] {
			t.Errorf("NeedsDriver(%s) = %v, want %v", s, got, withDriver[s])
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range allStatuses() {
		got, err := ParseStatus(string(s))
		if err != nil || got != s {
			t.Errorf("ParseStatus(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParseStatus("shipped"); !errors.Is(err, ErrValidation) {
		t.Error("unknown status must be rejected at the boundary")
	}
	if _, err := ParseRole("superuser"); !errors.Is(err, ErrValidation) {
		t.Error("unknown role must be rejected at the boundary")
	}
}

func TestOrderEventPartyIDs(t *testing.T) {
	e := OrderEvent{CustomerID: "c1", MerchantID: "m1", DriverID: "d1"}
	if got := e.PartyIDs(); len(got) != 3 {
		t.Fatalf("expected 3 parties, got %v", got)
	}

	// unassigned order: no driver party
	e.DriverID = ""
	if got := e.PartyIDs(); len(got) != 2 {
		t.Fatalf("expected 2 parties, got %v", got)
	}

	// self-delivery merchant shows up once
	e.DriverID = "m1"
	if got := e.PartyIDs(); len(got) != 2 {
		t.Fatalf("expected deduplicated parties, got %v", got)
	}
}
