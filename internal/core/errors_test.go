package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		target error
		kind   Kind
	}{
		{"not found", NotFound(EntityProject, "p1"), ErrNotFound, KindNotFound},
		{"validation", Validation(EntityTimeEntry, "bad"), ErrValidation, KindValidation},
		{"active timer", ActiveTimerExists("e1"), ErrActiveTimerExists, KindActiveTimerExists},
		{"internal", Internal(EntityProject, errors.New("disk")), ErrInternal, KindInternal},
		{"wrapped", fmt.Errorf("ctx: %w", NotFound(EntityTaskName, "t")), ErrNotFound, KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.target) {
				t.Fatalf("errors.Is(%v, %v) = false", tc.err, tc.target)
			}
			if got := KindOf(tc.err); got != tc.kind {
				t.Fatalf("KindOf = %v, want %v", got, tc.kind)
			}
		})
	}
}

func TestErrorKindsDoNotCrossMatch(t *testing.T) {
	err := NotFound(EntityProject, "p1")
	if errors.Is(err, ErrValidation) {
		t.Fatal("not found must not match validation")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatal("plain errors are internal")
	}
	if EntityOf(err) != EntityProject {
		t.Fatalf("EntityOf = %q", EntityOf(err))
	}
}

func TestErrorMessages(t *testing.T) {
	if got := NotFound(EntityProject, "abc").Error(); got != "Project not found: abc" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := NotFound(EntityTimeEntry, "x").Error(); got != "Time entry not found: x" {
		t.Fatalf("unexpected message %q", got)
	}
	cause := errors.New("boom")
	ie := Internal(EntityProject, cause)
	if !errors.Is(ie, cause) {
		t.Fatal("internal error should unwrap to cause")
	}
}

func TestFormatHHMM(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "00:00"},
		{59.9, "00:59"},
		{60, "01:00"},
		{125, "02:05"},
		{25*60 + 7, "25:07"},
		{-3, "00:00"},
	}
	for _, tc := range cases {
		if got := FormatMinutes(tc.in); got != tc.want {
			t.Errorf("FormatMinutes(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
