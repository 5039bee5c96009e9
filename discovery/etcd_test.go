package discovery

import "testing"

func TestKeyRoundtrip(t *testing.T) {
	k := Key("aaaaaaaa-0000-4000-8000-000000000001")
	if k != "/izzy/units/aaaaaaaa-0000-4000-8000-000000000001" {
		t.Fatalf("key = %q", k)
	}
	id, ok := UnitID(k)
	if !ok || id != "aaaaaaaa-0000-4000-8000-000000000001" {
		t.Fatalf("UnitID = %q,%v", id, ok)
	}
	for _, bad := range []string{"/izzy/units/", "/zephyr/nodes/x", ""} {
		if _, ok := UnitID(bad); ok {
			t.Fatalf("UnitID(%q) accepted", bad)
		}
	}
}
