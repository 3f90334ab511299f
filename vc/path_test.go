package vc

import "testing"

func TestParentPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"MAIN", ""},
		{"MAIN/project", "MAIN"},
		{"MAIN/project/task-1", "MAIN/project"},
	}
	for _, c := range cases {
		if got := ParentPath(c.path); got != c.want {
			t.Errorf("ParentPath(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestIsDescendantOrSelf(t *testing.T) {
	cases := []struct {
		path     string
		ancestor string
		want     bool
	}{
		{"MAIN", "MAIN", true},
		{"MAIN/project", "MAIN", true},
		{"MAIN/project/task-1", "MAIN", true},
		{"MAIN", "MAIN/project", false},
		{"MAIN/projectile", "MAIN/project", false},
		{"MAIN/other", "MAIN/project", false},
	}
	for _, c := range cases {
		if got := IsDescendantOrSelf(c.path, c.ancestor); got != c.want {
			t.Errorf("IsDescendantOrSelf(%q, %q) = %v, want %v", c.path, c.ancestor, got, c.want)
		}
	}
}
