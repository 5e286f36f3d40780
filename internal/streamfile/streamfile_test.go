package streamfile

import (
	"sort"
	"strings"
	"testing"
	"time"
)

func TestTimestamp(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"2019-07-01T14_29_00.302068Z.rcd", "2019-07-01T14:29:00.302068Z", true},
		{"2019-07-01T14_29_00.302068Z.rcd_sig", "2019-07-01T14:29:00.302068Z", true},
		{"2019-07-01T14_30_00.000000Z_Balances.csv", "2019-07-01T14:30:00Z", true},
		{"2019-07-01T14_30_00.000000Z_Balances.csv_sig", "2019-07-01T14:30:00Z", true},
		{"2019-07-01T14_29_00.302068Z.evts_sig", "2019-07-01T14:29:00.302068Z", true},
		{"recordstreams/record0.0.3/2019-07-01T14_29_00.302068Z.rcd_sig", "2019-07-01T14:29:00.302068Z", true},
		{"2019-07-01T14_29_00.302068Z.rcd_sig.gz", "2019-07-01T14:29:00.302068Z", true},
		{"latest.csv", "", false},
		{"garbage", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := Timestamp(tt.name)
		if ok != tt.ok {
			t.Errorf("Timestamp(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		want, err := time.Parse(time.RFC3339Nano, tt.want)
		if err != nil {
			t.Fatalf("bad test case %q: %v", tt.want, err)
		}
		if !got.Equal(want) {
			t.Errorf("Timestamp(%q) = %v, want %v", tt.name, got, want)
		}
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		stream Type
		name   string
		sig    bool
		pay    bool
	}{
		{Record, "2019-07-01T14_29_00.302068Z.rcd_sig", true, false},
		{Record, "2019-07-01T14_29_00.302068Z.rcd", false, true},
		{Record, "2019-07-01T14_29_00.302068Z.rcd_sig.gz", true, false},
		{Record, "2019-07-01T14_29_00.302068Z.rcd.gz", false, true},
		{Record, "2019-07-01T14_29_00.302068Z.evts_sig", false, false},
		{Balance, "2019-07-01T14_30_00.000000Z_Balances.csv_sig", true, false},
		{Balance, "2019-07-01T14_30_00.000000Z_Balances.csv", false, true},
		{Event, "2019-07-01T14_29_00.302068Z.evts_sig", true, false},
		{Event, "2019-07-01T14_29_00.302068Z.evts", false, true},
	}

	for _, tt := range tests {
		if got := tt.stream.IsSignature(tt.name); got != tt.sig {
			t.Errorf("%v.IsSignature(%q) = %v, want %v", tt.stream, tt.name, got, tt.sig)
		}
		if got := tt.stream.IsPayload(tt.name); got != tt.pay {
			t.Errorf("%v.IsPayload(%q) = %v, want %v", tt.stream, tt.name, got, tt.pay)
		}
	}
}

func TestIsLatestAlias(t *testing.T) {
	if !IsLatestAlias("accountBalances/balance/0.0.3/latest.csv") {
		t.Error("latest.csv should be detected as alias")
	}
	if IsLatestAlias("accountBalances/balance/0.0.3/2019-07-01T14_30_00.000000Z_Balances.csv") {
		t.Error("timestamped file wrongly detected as alias")
	}
}

func TestCompareOrdersMalformedFirst(t *testing.T) {
	names := []string{
		"2019-07-01T14_31_00.000000Z.rcd_sig",
		"not-a-timestamp.rcd_sig",
		"2019-07-01T14_29_00.302068Z.rcd_sig",
		"2019-07-01T14_30_00.000000Z.rcd_sig",
	}
	sort.Slice(names, func(i, j int) bool { return Compare(names[i], names[j]) < 0 })

	if names[0] != "not-a-timestamp.rcd_sig" {
		t.Errorf("malformed name must order first, got %q", names[0])
	}
	for i := 2; i < len(names); i++ {
		if Compare(names[i-1], names[i]) >= 0 {
			t.Errorf("names not in ascending timestamp order at %d: %q >= %q", i, names[i-1], names[i])
		}
	}
}

// The scanner's resume filter relies on raw lexicographic key order
// matching temporal order for well-formed names of one node and stream
// type. This pins that assumption.
func TestLexicographicMatchesTemporal(t *testing.T) {
	names := []string{
		"2019-07-01T09_00_00.000000Z.rcd_sig",
		"2019-07-01T14_29_00.302068Z.rcd_sig",
		"2019-07-01T14_29_59.999999Z.rcd_sig",
		"2019-07-01T14_30_00.000000Z.rcd_sig",
		"2019-12-31T23_59_59.000000Z.rcd_sig",
		"2020-01-01T00_00_00.000001Z.rcd_sig",
	}

	for i := 1; i < len(names); i++ {
		a, b := names[i-1], names[i]
		if strings.Compare(a, b) >= 0 {
			t.Errorf("lexicographic order violated: %q >= %q", a, b)
		}
		if Compare(a, b) >= 0 {
			t.Errorf("temporal order violated: %q >= %q", a, b)
		}
		if CompareKeys("prefix/node/"+a, "prefix/node/"+b) >= 0 {
			t.Errorf("key order violated: %q >= %q", a, b)
		}
		if ComparePaths("/data/node/"+a, "/data/node/"+b) >= 0 {
			t.Errorf("path order violated: %q >= %q", a, b)
		}
	}
}

func TestNodeFromKey(t *testing.T) {
	tests := []struct {
		prefix   string
		key      string
		node     string
		filename string
		ok       bool
	}{
		{"recordstreams/record", "recordstreams/record0.0.3/2019-07-01T14_29_00.302068Z.rcd_sig", "0.0.3", "2019-07-01T14_29_00.302068Z.rcd_sig", true},
		{"accountBalances/balance/", "accountBalances/balance/0.0.4/2019-07-01T14_30_00.000000Z_Balances.csv", "0.0.4", "2019-07-01T14_30_00.000000Z_Balances.csv", true},
		{"eventstreams/events_", "eventstreams/events_0.0.5/2019-07-01T14_29_00.302068Z.evts_sig", "0.0.5", "2019-07-01T14_29_00.302068Z.evts_sig", true},
		{"recordstreams/record", "somewhere/else/file.rcd", "", "", false},
		{"recordstreams/record", "recordstreams/record0.0.3/", "", "", false},
	}

	for _, tt := range tests {
		node, filename, ok := NodeFromKey(tt.prefix, tt.key)
		if ok != tt.ok || node != tt.node || filename != tt.filename {
			t.Errorf("NodeFromKey(%q, %q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.prefix, tt.key, node, filename, ok, tt.node, tt.filename, tt.ok)
		}
	}
}
