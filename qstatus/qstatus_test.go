package qstatus

import (
	"testing"
)

func TestGet(t *testing.T) {
	var s QStatus
	s = NEMask

	if s.Get() != 2 {
		t.Errorf("Expected status value of 2, got %v", s.Get())
	}
}

func TestQStatus_E(t *testing.T) {
	tests := []struct {
		name string
		s    QStatus
		want bool
	}{
		{"E set, all 0", 1, true},
		{"E set, other flags too", 3, true},
		{"E clear, all 0", 0, false},
		{"E clear, NE set", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.s
			if s.E() != tt.want {
				t.Errorf("qstatus.E() (%v) failed. S: %v, wanted %v, got %v",
					tt.name, s, tt.want, s.E())
			}
		})
	}
}

func TestQStatus_SetF(t *testing.T) {
	tests := []struct {
		name     string
		s        QStatus
		args     bool
		modified QStatus
	}{
		{"set F S=0", 0, true, 8},
		{"set F S=8", 8, true, 8},
		{"clear F S=0", 0, false, 0},
		{"clear F S=8", 8, false, 0},
		{"clear F S=12", 12, false, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.s.SetF(tt.args)
			if tt.s.F() != tt.args {
				t.Errorf("qstatus.SetF() (%s) failed. S: %v, expected: %v, got %v \n",
					tt.name, tt.s, tt.args, tt.s.F())
			}

			if tt.s != tt.modified {
				t.Errorf("qstatus.SetF (%s) failed. S = %v, expected S = %v\n",
					tt.name, tt.s, tt.modified)
			}
		})
	}
}

func TestFill(t *testing.T) {
	tests := []struct {
		name    string
		entries int
		want    QStatus
	}{
		{"empty", 0, EMask | NEMask},
		{"nearly empty", 2, NEMask},
		{"between watermarks", 5, 0},
		{"nearly full", 12, NFMask},
		{"full", 16, NFMask | FMask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fill(tt.entries, 16, 2, 12)
			if got != tt.want {
				t.Errorf("Fill(%d) = %s, want %s", tt.entries, got.GetFlags(), tt.want.GetFlags())
			}
		})
	}
}

func TestGetFlags(t *testing.T) {
	s := QStatus(EMask | NEMask | OFMask)
	if got := s.GetFlags(); got != "[E NE OF]" {
		t.Errorf("Expected [E NE OF], got %s", got)
	}
	s = 0
	if got := s.GetFlags(); got != "[]" {
		t.Errorf("Expected [], got %s", got)
	}
}
