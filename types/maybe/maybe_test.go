package maybe

import (
	"errors"
	"testing"
)

func TestMaybe(t *testing.T) {
	s := Some(2.5)
	if !s.IsValid() || s.Value() != 2.5 || s.ValueOrDefault(1) != 2.5 {
		t.Errorf("unexpected Some %+v", s)
	}

	n := None[float64]()
	if n.IsValid() || n.ValueOrDefault(1) != 1 {
		t.Errorf("unexpected None %+v", n)
	}
	if n.String() != "-" || s.String() != "2.5" {
		t.Errorf("got %q and %q", n.String(), s.String())
	}
}

func TestFromPtr(t *testing.T) {
	v := 7
	if m := FromPtr(&v); !m.IsValid() || m.Value() != 7 {
		t.Errorf("got %+v, wanted Some(7)", m)
	}
	if m := FromPtr[int](nil); m.IsValid() {
		t.Errorf("got %+v, wanted None", m)
	}
}

func TestFromResult(t *testing.T) {
	if m := FromResult(3, nil); !m.IsValid() {
		t.Errorf("got %+v, wanted Some(3)", m)
	}
	if m := FromResult(3, errors.New("nope")); m.IsValid() {
		t.Errorf("got %+v, wanted None", m)
	}
}
