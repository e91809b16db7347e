package setexpr

import "testing"

func weekdayBuilder() *Builder {
	return NewNamesBuilder(
		[]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"},
		WithSignificantChars(3),
	)
}

func monthBuilder() *Builder {
	return NewNamesBuilder(
		[]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"},
		WithOffset(1),
		WithSignificantChars(3),
	)
}

func monthdayBuilder() *Builder {
	return NewRangeBuilder(1, 31)
}

// TestBuildSingleName tests that a bare name resolves to its position.
func TestBuildSingleName(t *testing.T) {
	set, err := weekdayBuilder().Build("wed")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !set.Contains(2) {
		t.Errorf("Build(%q) = %v, want to contain 2", "wed", set)
	}
	if len(set) != 1 {
		t.Errorf("Build(%q) = %v, want exactly one member", "wed", set)
	}
}

// TestBuildNameTruncation tests that names longer than the significant
// character count still resolve.
func TestBuildNameTruncation(t *testing.T) {
	set, err := weekdayBuilder().Build("monday")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !set.Contains(0) {
		t.Errorf("Build(%q) = %v, want to contain 0", "monday", set)
	}
}

// TestBuildRange tests a simple a-b range.
func TestBuildRange(t *testing.T) {
	set, err := weekdayBuilder().Build("mon-fri")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for i := 0; i <= 4; i++ {
		if !set.Contains(i) {
			t.Errorf("Build(%q) missing %d", "mon-fri", i)
		}
	}
	if set.Contains(5) || set.Contains(6) {
		t.Errorf("Build(%q) = %v, want sat/sun excluded", "mon-fri", set)
	}
}

// TestBuildWrappingRange tests a range that wraps past the end of the domain.
func TestBuildWrappingRange(t *testing.T) {
	b := NewNamesBuilder(
		[]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"},
		WithSignificantChars(3),
	)
	b.wrap = true
	set, err := b.Build("sat-mon")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, v := range []int{5, 6, 0} {
		if !set.Contains(v) {
			t.Errorf("Build(%q) missing %d", "sat-mon", v)
		}
	}
	if set.Contains(1) {
		t.Errorf("Build(%q) should not contain tue", "sat-mon")
	}
}

// TestBuildNonWrappingRangeRejected tests that a descending range is
// rejected when the builder doesn't allow wraparound.
func TestBuildNonWrappingRangeRejected(t *testing.T) {
	_, err := monthdayBuilder().Build("20-10")
	if err == nil {
		t.Fatal("Build() expected error for descending range without wrap")
	}
}

// TestBuildStepIncrement tests a-b/n stepping.
func TestBuildStepIncrement(t *testing.T) {
	set, err := monthdayBuilder().Build("1-10/2")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := []int{1, 3, 5, 7, 9}
	for _, v := range want {
		if !set.Contains(v) {
			t.Errorf("Build(%q) missing %d", "1-10/2", v)
		}
	}
	if len(set) != len(want) {
		t.Errorf("Build(%q) = %v, want %d members", "1-10/2", set, len(want))
	}
}

// TestBuildWildcardAll tests that * and ? both mean the entire domain.
func TestBuildWildcardAll(t *testing.T) {
	for _, expr := range []string{"*", "?"} {
		set, err := monthBuilder().Build(expr)
		if err != nil {
			t.Fatalf("Build(%q) error = %v", expr, err)
		}
		if len(set) != 12 {
			t.Errorf("Build(%q) = %v, want 12 members", expr, set)
		}
	}
}

// TestBuildFirstLastWildcards tests ^ (first) and $ (last) as range endpoints.
func TestBuildFirstLastWildcards(t *testing.T) {
	set, err := monthdayBuilder().Build("^-^")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(set) != 1 || !set.Contains(1) {
		t.Errorf("Build(%q) = %v, want {1}", "^-^", set)
	}

	set, err = monthdayBuilder().Build("25-$")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for v := 25; v <= 31; v++ {
		if !set.Contains(v) {
			t.Errorf("Build(%q) missing %d", "25-$", v)
		}
	}
}

// TestBuildCommaList tests that multiple comma-separated tokens union.
func TestBuildCommaList(t *testing.T) {
	set, err := weekdayBuilder().Build("mon,wed,fri")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, v := range []int{0, 2, 4} {
		if !set.Contains(v) {
			t.Errorf("Build(%q) missing %d", "mon,wed,fri", v)
		}
	}
	if len(set) != 3 {
		t.Errorf("Build(%q) = %v, want 3 members", "mon,wed,fri", set)
	}
}

// TestBuildUnknownName tests that an unrecognized token is rejected.
func TestBuildUnknownName(t *testing.T) {
	if _, err := weekdayBuilder().Build("notaday"); err == nil {
		t.Fatal("Build() expected error for unknown name")
	}
}

// TestBuildNumericMonthday tests plain numeric tokens against a range domain.
func TestBuildNumericMonthday(t *testing.T) {
	set, err := monthdayBuilder().Build("1,15,31")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, v := range []int{1, 15, 31} {
		if !set.Contains(v) {
			t.Errorf("Build(%q) missing %d", "1,15,31", v)
		}
	}
}

// TestBuildMonthOffset tests that a 1-based domain (months) reports the
// right First/Last and resolves names to 1-based values.
func TestBuildMonthOffset(t *testing.T) {
	b := monthBuilder()
	if b.First() != 1 || b.Last() != 12 {
		t.Fatalf("First()/Last() = %d/%d, want 1/12", b.First(), b.Last())
	}
	set, err := b.Build("jan-mar")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, v := range []int{1, 2, 3} {
		if !set.Contains(v) {
			t.Errorf("Build(%q) missing %d", "jan-mar", v)
		}
	}
}

// TestBuildInvalidIncrement tests that a zero or negative step is rejected.
func TestBuildInvalidIncrement(t *testing.T) {
	if _, err := monthdayBuilder().Build("1-10/0"); err == nil {
		t.Fatal("Build() expected error for zero increment")
	}
	if _, err := monthdayBuilder().Build("1-10/-1"); err == nil {
		t.Fatal("Build() expected error for negative increment")
	}
}
