package history

import (
	"strings"
	"testing"
)

func TestDecodeCounters(t *testing.T) {
	const today = "2024-10-05"

	tests := []struct {
		name string
		cell string
		want map[string]int
	}{
		{"empty", "", map[string]int{}},
		{"nan", "NaN", map[string]int{}},
		{"empty object", "{}", map[string]int{}},
		{"legacy int", "12", map[string]int{today: 12}},
		{"legacy float", "12.0", map[string]int{today: 12}},
		{"json", `{"2024-10-01": 3, "2024-10-02": 4}`, map[string]int{"2024-10-01": 3, "2024-10-02": 4}},
		{"python dict repr", `{'2024-10-01': 3}`, map[string]int{"2024-10-01": 3}},
		{"python dict with text values", `{'2024-10-01': '1,204', '2024-10-02': ''}`, map[string]int{"2024-10-01": 1204, "2024-10-02": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeCounters(tt.cell, today)
			if err != nil {
				t.Fatalf("DecodeCounters(%q) error: %v", tt.cell, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("DecodeCounters(%q) = %v, want %v", tt.cell, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("DecodeCounters(%q)[%s] = %d, want %d", tt.cell, k, got[k], v)
				}
			}
		})
	}
}

func TestDecodeCounters_Invalid(t *testing.T) {
	for _, cell := range []string{"twelve", "12.5", `{'2024-10-01': 'many'}`, `[1, 2]`} {
		if _, err := DecodeCounters(cell, "2024-10-05"); err == nil {
			t.Errorf("DecodeCounters(%q) expected error", cell)
		}
	}
}

func TestDecodeCounters_KeepsReadableEntries(t *testing.T) {
	got, err := DecodeCounters(`{'2024-10-01': 4, '2024-10-02': 'N/A', '2024-10-03': 3.7}`, "2024-10-05")
	if err == nil {
		t.Fatal("expected an error naming the dropped dates")
	}
	if want := map[string]int{"2024-10-01": 4}; len(got) != 1 || got["2024-10-01"] != 4 {
		t.Errorf("DecodeCounters kept %v, want %v", got, want)
	}
	if !strings.Contains(err.Error(), "2024-10-02, 2024-10-03") {
		t.Errorf("error %q does not name both dropped dates", err)
	}

	got, err = DecodeCounters("[1, 2]", "2024-10-05")
	if err == nil || got == nil || len(got) != 0 {
		t.Errorf("DecodeCounters([1, 2]) = (%v, %v), want empty mapping and error", got, err)
	}
}

func TestDecodeCounters_NonIntegralAndHugeNumbers(t *testing.T) {
	for _, cell := range []string{`{"2024-10-01": 3.7}`, `{"2024-10-01": 1e300}`, `{"2024-10-01": -1e19}`, "1e300"} {
		got, err := DecodeCounters(cell, "2024-10-05")
		if err == nil {
			t.Errorf("DecodeCounters(%q) = %v, expected error", cell, got)
		}
	}
	got, err := DecodeCounters(`{"2024-10-01": 4.0}`, "2024-10-05")
	if err != nil || got["2024-10-01"] != 4 {
		t.Errorf("DecodeCounters(4.0) = (%v, %v), want 4", got, err)
	}
}

func TestEncodeCounters(t *testing.T) {
	tests := []struct {
		in   map[string]int
		want string
	}{
		{nil, "{}"},
		{map[string]int{}, "{}"},
		{map[string]int{"2024-10-02": 4, "2024-10-01": 3}, `{"2024-10-01":3,"2024-10-02":4}`},
	}
	for _, tt := range tests {
		if got := EncodeCounters(tt.in); got != tt.want {
			t.Errorf("EncodeCounters(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"42", 42, true},
		{" 1,204 ", 1204, true},
		{"7.0", 7, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"12.5", 0, false},
		{"1e300", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseCount(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseCount(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
