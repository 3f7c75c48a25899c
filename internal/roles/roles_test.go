package roles

import "testing"

func TestParseNormalises(t *testing.T) {
	cases := map[string]RolePath{
		"editor":         Editor,
		" Manager ":      Manager,
		"layout-editor":  LayoutEditor,
		"SECTION_EDITOR": SectionEditor,
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("Parse(%q)=%q, want %q", in, got, want)
		}
	}
	if _, err := Parse("owner"); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
}

func TestEveryRoleHasLabel(t *testing.T) {
	for _, r := range All {
		if r.Label() == string(r) {
			t.Fatalf("role %q has no label", r)
		}
	}
	if len(All) != len(labels) {
		t.Fatalf("All has %d roles, labels has %d", len(All), len(labels))
	}
}

func TestEffectiveInIncludesSiteWide(t *testing.T) {
	list := []Assignment{
		{UserID: "u1", Role: Admin},
		{UserID: "u1", Role: Editor, ContextID: "j1"},
		{UserID: "u1", Role: Reviewer, ContextID: "j2"},
	}
	set := EffectiveIn(list, "j1")
	if !set.Has(Admin) || !set.Has(Editor) {
		t.Fatalf("expected admin and editor in j1, got %v", set.Slice())
	}
	if set.Has(Reviewer) {
		t.Fatal("reviewer from j2 leaked into j1")
	}
}

func TestSetSliceFollowsDisplayOrder(t *testing.T) {
	s := NewSet(Reader, Admin, Editor)
	got := s.Slice()
	want := []RolePath{Admin, Editor, Reader}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slice[%d]=%q, want %q", i, got[i], want[i])
		}
	}
	if !s.Intersects(NewSet(Editor, Author)) {
		t.Fatal("expected intersection on editor")
	}
	if s.Intersects(NewSet(Author)) {
		t.Fatal("unexpected intersection")
	}
}
