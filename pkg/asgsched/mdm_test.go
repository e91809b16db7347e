package asgsched

import "testing"

func TestParseMDMRoundTrip(t *testing.T) {
	m, err := parseMDM("1-2-5")
	if err != nil {
		t.Fatalf("parseMDM: %v", err)
	}
	if m.Min != 1 || m.Desired != 2 || m.Max != 5 {
		t.Errorf("parseMDM(1-2-5) = %+v", m)
	}
	if m.String() != "1-2-5" {
		t.Errorf("String() = %q, want 1-2-5", m.String())
	}
}

func TestParseMDMRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "1-2", "1-2-3-4", "a-b-c"} {
		if _, err := parseMDM(bad); err == nil {
			t.Errorf("parseMDM(%q) succeeded, want error", bad)
		}
	}
}

func TestMDMIsZero(t *testing.T) {
	if !(mdm{}).isZero() {
		t.Error("zero-value mdm should be isZero")
	}
	if (mdm{Min: 1}).isZero() {
		t.Error("mdm with a nonzero field should not be isZero")
	}
}
