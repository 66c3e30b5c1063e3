package commands

import "testing"

func TestParseBTC(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1", 100000000},
		{"0.00000001", 1},
		{"1.5", 150000000},
		{".25", 25000000},
		{"3.", 300000000},
		{"0.001", 100000},
		{"21000000", 2100000000000000},
	}

	for _, c := range cases {
		got, err := ParseBTC(c.in)
		if err != nil {
			t.Fatalf("ParseBTC(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseBTC(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseBTCRejects(t *testing.T) {
	for _, in := range []string{"", ".", "-1", "1e3", "0.000000001", "1.2.3", "abc", "184467440738"} {
		if _, err := ParseBTC(in); err == nil {
			t.Fatalf("ParseBTC(%q) should fail", in)
		}
	}
}

func TestFormatBTC(t *testing.T) {
	cases := map[uint64]string{
		0:         "0",
		1:         "0.00000001",
		100000:    "0.001",
		150000000: "1.5",
		200000000: "2",
	}

	for in, want := range cases {
		if got := FormatBTC(in); got != want {
			t.Fatalf("FormatBTC(%d) = %s, want %s", in, got, want)
		}
		back, err := ParseBTC(FormatBTC(in))
		if err != nil || back != in {
			t.Fatalf("ParseBTC(FormatBTC(%d)) = %d, %v", in, back, err)
		}
	}
}

func TestParseAmountSats(t *testing.T) {
	v, err := parseAmount("12345", true)
	if err != nil || v != 12345 {
		t.Fatalf("parseAmount sats = %d, %v", v, err)
	}
	if _, err := parseAmount("1.5", true); err == nil {
		t.Fatalf("decimal satoshi amount should fail")
	}
}
