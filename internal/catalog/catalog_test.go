package catalog

import "testing"

func TestSortEntriesOrdersByIslandThenSource(t *testing.T) {
	entries := []Entry{
		{Kind: EntryComponent, Component: &Component{Island: 2, Source: 0}},
		{Kind: EntryComponent, Component: &Component{Island: 1, Source: 1}},
		{Kind: EntryComponent, Component: &Component{Island: 1, Source: 0}},
		{Kind: EntryIslandSummary, Summary: &IslandSummary{Island: 1}},
	}
	SortEntries(entries)

	want := []struct {
		kind   EntryKind
		island int
	}{
		{EntryComponent, 1},
		{EntryComponent, 1},
		{EntryIslandSummary, 1},
		{EntryComponent, 2},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		island, _, _ := keyOf(entries[i])
		if entries[i].Kind != w.kind || island != w.island {
			t.Fatalf("entry %d: got kind=%v island=%d, want kind=%v island=%d", i, entries[i].Kind, island, w.kind, w.island)
		}
	}
}

func TestFlagsString(t *testing.T) {
	f := FIXED2PSF | NOTFIT
	s := f.String()
	if s != "FIXED2PSF|NOTFIT" {
		t.Fatalf("Flags.String() = %q, want %q", s, "FIXED2PSF|NOTFIT")
	}
	if (Flags(0)).String() != "-" {
		t.Fatalf("zero Flags.String() = %q, want %q", Flags(0).String(), "-")
	}
}
