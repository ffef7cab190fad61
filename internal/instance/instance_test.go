package instance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matheus3301/stagechat/internal/config"
)

func TestDirHonoursHome(t *testing.T) {
	base := t.TempDir()
	t.Setenv(EnvHome, base)

	if got, want := Dir("main"), filepath.Join(base, "instances", "main"); got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
	if got, want := SocketPath("test"), filepath.Join(base, "instances", "test", "daemon.sock"); got != want {
		t.Errorf("SocketPath(test) = %q, want %q", got, want)
	}
	if got, want := ConfigPath(), filepath.Join(base, "config.toml"); got != want {
		t.Errorf("ConfigPath() = %q, want %q", got, want)
	}
}

func TestDefaultBaseDir(t *testing.T) {
	t.Setenv(EnvHome, "")
	home, _ := os.UserHomeDir()
	if got, want := BaseDir(), filepath.Join(home, ".stagechat"); got != want {
		t.Errorf("BaseDir() = %q, want %q", got, want)
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())

	if err := EnsureDir("test"); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	for _, d := range []string{Dir("test"), LogDir("test")} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("%s not created: %v", d, err)
		}
		if perm := info.Mode().Perm(); perm != 0700 {
			t.Errorf("%s permission = %o, want 0700", d, perm)
		}
	}
	if filepath.Dir(LogPath("test")) != LogDir("test") {
		t.Errorf("LogPath(test) = %q not under LogDir", LogPath("test"))
	}
	if filepath.Dir(DBPath("test")) != Dir("test") {
		t.Errorf("DBPath(test) = %q not under Dir", DBPath("test"))
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid with numbers", "venue123", false},
		{"valid with hyphen", "my-instance", false},
		{"valid with underscore", "my_instance", false},
		{"valid single char", "a", false},
		{"valid max length", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
		{"empty", "", true},
		{"uppercase", "Main", true},
		{"space", "my instance", true},
		{"dot", "my.instance", true},
		{"too long", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true},
		{"slash", "../etc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		cfg     *config.Config
		want    string
		wantErr bool
	}{
		{"flag wins", "work", &config.Config{DefaultInstance: "home"}, "work", false},
		{"config default", "", &config.Config{DefaultInstance: "home"}, "home", false},
		{"fallback", "", &config.Config{}, DefaultName, false},
		{"nil config", "", nil, DefaultName, false},
		{"invalid flag", "Bad Name", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.flag, tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}
