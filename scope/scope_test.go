package scope

import (
	"encoding/json"
	"testing"
)

func TestWeightFormula(t *testing.T) {
	cases := []struct {
		priority int
		want     int
	}{
		{0, 101},
		{50, 51},
		{100, 1},
	}
	for _, c := range cases {
		a := Authority{Priority: c.priority}
		if got := a.Weight(); got != c.want {
			t.Errorf("priority %d: weight = %d, want %d", c.priority, got, c.want)
		}
	}
}

func TestByzantineKSmallN(t *testing.T) {
	for n := 0; n < 4; n++ {
		if got := ByzantineK(n); got != 1 {
			t.Errorf("ByzantineK(%d) = %d, want 1", n, got)
		}
	}
}

func TestByzantineKFormula(t *testing.T) {
	cases := []struct {
		n, want int
	}{
		{4, 4},
		{7, 6},
		{10, 8},
	}
	for _, c := range cases {
		if got := ByzantineK(c.n); got != c.want {
			t.Errorf("ByzantineK(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestTableInsertLookupRemove(t *testing.T) {
	tbl := New()
	tbl.Insert(Entry{Name: "root", Role: RoleAuthority})
	tbl.Insert(Entry{Name: "root.sub", Role: RoleMirror})

	if _, ok := tbl.Lookup("root"); !ok {
		t.Fatal("expected root to be found")
	}
	if len(tbl.All()) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(tbl.All()))
	}
	tbl.Remove("root")
	if _, ok := tbl.Lookup("root"); ok {
		t.Fatal("expected root to be removed")
	}
	if len(tbl.All()) != 1 {
		t.Fatalf("expected 1 entry after remove, got %d", len(tbl.All()))
	}
}

func TestTableJSONRoundTripObjectShape(t *testing.T) {
	tbl := New()
	tbl.Insert(Entry{Name: "root", Role: RoleAuthority})

	b, err := json.Marshal(tbl)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got := New()
	if err := json.Unmarshal(b, got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.All()) != 1 || got.All()[0].Name != "root" {
		t.Fatalf("round trip mismatch: %+v", got.All())
	}
}

func TestTableJSONAcceptsBareArray(t *testing.T) {
	raw := []byte(`[{"name":"root","role":"authority"}]`)
	tbl := New()
	if err := json.Unmarshal(raw, tbl); err != nil {
		t.Fatalf("unmarshal bare array: %v", err)
	}
	if len(tbl.All()) != 1 {
		t.Fatalf("expected 1 entry from bare array, got %d", len(tbl.All()))
	}
}

func TestAncestors(t *testing.T) {
	got := Ancestors("a.b.c")
	want := []string{"a.b.c", "a.b", "a"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
