package scan

import (
	"reflect"
	"testing"

	"github.com/pkg/errors"
)

func TestParsePorts_Valid(t *testing.T) {
	cases := map[string][]int{
		"22,80,443":       {22, 80, 443},
		"20-22":           {20, 21, 22},
		"80,22,80":        {22, 80},
		" 443 , 22 ":      {22, 443},
		"22,,80":          {22, 80},
		"1-3,2-4":         {1, 2, 3, 4},
		"65535":           {65535},
		"22,80,8000-8002": {22, 80, 8000, 8001, 8002},
	}
	for spec, want := range cases {
		t.Run(spec, func(t *testing.T) {
			got, err := ParsePorts(spec)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("got %v want %v", got, want)
			}
		})
	}
}

func TestParsePorts_Invalid(t *testing.T) {
	cases := []string{
		"",        // empty
		",,",      // only empty tokens
		"50-10",   // reversed range
		"0-10",    // out of range in range
		"70000",   // invalid port
		"0",       // invalid port
		"abc",     // bad token
		"1-2-3",   // malformed range
		"-5",      // missing start
		"10-",     // missing end
		"1-70000", // out of range in range
	}
	for _, spec := range cases {
		t.Run(spec, func(t *testing.T) {
			_, err := ParsePorts(spec)
			if err == nil {
				t.Fatalf("expected error for spec %q", spec)
			}
			if !errors.Is(err, ErrInvalidSpec) {
				t.Fatalf("expected ErrInvalidSpec, got %v", err)
			}
		})
	}
}

func TestParsePorts_StrictlyAscending(t *testing.T) {
	got, err := ParsePorts("9000-9010,5,1-20,9005,65535,100-90")
	if err == nil {
		t.Fatalf("expected error for reversed range, got %v", got)
	}

	got, err = ParsePorts("9000-9010,5,1-20,9005,65535")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("not strictly ascending at %d: %v", i, got)
		}
	}
}

func TestPortStatePriority(t *testing.T) {
	order := []PortState{PortError, PortFiltered, PortClosed, PortOpen}
	for i := 1; i < len(order); i++ {
		if order[i].Priority() <= order[i-1].Priority() {
			t.Fatalf("%s should outrank %s", order[i], order[i-1])
		}
	}
	if PortOpen.Priority() != 4 || PortError.Priority() != 1 {
		t.Fatalf("unexpected priorities: open=%d error=%d", PortOpen.Priority(), PortError.Priority())
	}
}

func TestParsePortState(t *testing.T) {
	for _, s := range []PortState{PortOpen, PortClosed, PortFiltered, PortError} {
		got, err := ParsePortState(s.String())
		if err != nil || got != s {
			t.Fatalf("round trip %s: got %s err %v", s, got, err)
		}
	}
	if _, err := ParsePortState("half-open"); err == nil {
		t.Fatalf("expected error for unknown state")
	}
}

func TestDescribePort(t *testing.T) {
	if got := DescribePort(443); got != "https" {
		t.Fatalf("443: got %q", got)
	}
	if got := DescribePort(22); got != "ssh" {
		t.Fatalf("22: got %q", got)
	}
	if got := DescribePort(0); got != "" {
		t.Fatalf("0: got %q", got)
	}
}
