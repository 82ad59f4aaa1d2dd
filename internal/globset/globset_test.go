package globset

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"*.yml", "a.yml", true},
		{"*.yml", "dir/a.yml", false},
		{"**/*.yml", "a.yml", true},
		{"**/*.yml", "dir/a.yml", true},
		{"**/*.yml", "dir/sub/a.yml", true},
		{"manifests/**", "manifests/a.yml", true},
		{"manifests/**", "manifests/sub/a.yml", true},
		{"manifests/**", "other/a.yml", false},
		{".git/*", ".git/HEAD", true},
		{".git/*", ".git/objects/pack", false},
		{".gitignore", ".gitignore", true},
		{".gitignore", "sub/.gitignore", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.path, func(t *testing.T) {
			if got := Match(tt.pattern, tt.path); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}
}

func TestSetMatches(t *testing.T) {
	s := Set{"*.yml", "manifests/**"}
	if !s.Matches("a.yml") {
		t.Error("expected a.yml to match")
	}
	if !s.Matches("manifests/x.json") {
		t.Error("expected manifests/x.json to match")
	}
	if s.Matches("src/main.go") {
		t.Error("expected src/main.go not to match")
	}
}
