package permissions

import "testing"

func TestStatusString(t *testing.T) {
	tests := map[Status]string{
		StatusNotDetermined: "not-determined",
		StatusRestricted:    "restricted",
		StatusDenied:        "denied",
		StatusAuthorized:    "authorized",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}
