package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfig(t *testing.T) {
	local := t.TempDir()
	global := t.TempDir()

	got, err := FindConfig(local, global)
	if err != nil {
		t.Fatalf("FindConfig() error = %v", err)
	}
	if got != "" {
		t.Fatalf("FindConfig() = %q, want empty when nothing exists", got)
	}

	globalToml := filepath.Join(global, "relaybot.toml")
	if err := os.WriteFile(globalToml, []byte("[llm]\n"), 0600); err != nil {
		t.Fatal(err)
	}
	got, _ = FindConfig(local, global)
	if got != globalToml {
		t.Errorf("FindConfig() = %q, want %q", got, globalToml)
	}

	// Local dir wins over global, and .json wins over .yaml within a dir.
	for _, name := range []string{"relaybot.yaml", "relaybot.json"} {
		if err := os.WriteFile(filepath.Join(local, name), []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	got, _ = FindConfig(local, global)
	if want := filepath.Join(local, "relaybot.json"); got != want {
		t.Errorf("FindConfig() = %q, want %q", got, want)
	}
}

func TestFindConfigSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "relaybot.json"), 0750); err != nil {
		t.Fatal(err)
	}
	got, err := FindConfig(dir)
	if err != nil || got != "" {
		t.Errorf("FindConfig() = %q, %v; want empty, nil", got, err)
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/etc/relaybot.json", "/etc/relaybot.json"},
		{"~", home},
		{"~/cfg/relaybot.toml", filepath.Join(home, "cfg/relaybot.toml")},
		{"~/", home},
		{"~other/x", "~other/x"},
		{"~other", "~other"},
		{"./~/x", "./~/x"},
	}
	for _, tt := range tests {
		got, err := ExpandTilde(tt.in)
		if err != nil {
			t.Fatalf("ExpandTilde(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ExpandTilde(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
