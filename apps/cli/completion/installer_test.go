package completion

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const home = "/home/user"

func newTestInstaller(t *testing.T) (*Installer, afero.Fs) {
	t.Helper()
	root := &cobra.Command{Use: "normalise", Short: "Normalise media"}
	root.AddCommand(&cobra.Command{Use: "inspect", Short: "Inspect files", Run: func(*cobra.Command, []string) {}})
	fs := afero.NewMemMapFs()
	return NewInstaller(fs, home, root), fs
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestInstaller_Install(t *testing.T) {
	for _, shell := range []Shell{Bash, Zsh, Fish} {
		t.Run(string(shell), func(t *testing.T) {
			installer, fs := newTestInstaller(t)

			path, err := installer.Install(shell)
			if err != nil {
				t.Fatalf("Install() error = %v", err)
			}
			want, _ := ScriptPath(shell, home, "normalise")
			if path != want {
				t.Errorf("Install() path = %v, want %v", path, want)
			}
			if script := readFile(t, fs, path); !strings.Contains(script, "normalise") {
				t.Errorf("Expected the script to mention the program name, got %d bytes", len(script))
			}
		})
	}
}

func TestInstaller_Install_BashAutoLoad(t *testing.T) {
	installer, fs := newTestInstaller(t)
	if err := afero.WriteFile(fs, home+"/.bash_completion", []byte("source /other/script"), 0644); err != nil {
		t.Fatal(err)
	}

	path, err := installer.Install(Bash)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	// A second install must not duplicate the line
	if _, err := installer.Install(Bash); err != nil {
		t.Fatalf("second Install() error = %v", err)
	}

	content := readFile(t, fs, home+"/.bash_completion")
	if want := "source /other/script\nsource " + path + "\n"; content != want {
		t.Errorf("bash_completion = %q, want %q", content, want)
	}
}

func TestInstaller_Install_UnsupportedShell(t *testing.T) {
	installer, _ := newTestInstaller(t)
	if _, err := installer.Install("tcsh"); err == nil || !strings.Contains(err.Error(), "unsupported shell") {
		t.Errorf("Install() error = %v, want unsupported shell", err)
	}
}

func TestInstaller_Uninstall(t *testing.T) {
	installer, fs := newTestInstaller(t)

	path, err := installer.Install(Bash)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	removed, err := installer.Uninstall(Bash)
	if err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}
	if removed != path {
		t.Errorf("Uninstall() path = %v, want %v", removed, path)
	}
	if exists, _ := afero.Exists(fs, path); exists {
		t.Error("Expected the script to be removed")
	}
	if content := readFile(t, fs, home+"/.bash_completion"); strings.Contains(content, path) {
		t.Errorf("Expected the source line to be removed, got %q", content)
	}
}

func TestInstaller_Uninstall_NotInstalled(t *testing.T) {
	installer, _ := newTestInstaller(t)
	if _, err := installer.Uninstall(Fish); err == nil || !strings.Contains(err.Error(), "not installed") {
		t.Errorf("Uninstall() error = %v, want not installed", err)
	}
}

func TestNewInstallCmd(t *testing.T) {
	root := &cobra.Command{Use: "normalise"}
	for _, cmd := range []*cobra.Command{NewInstallCmd(root), NewUninstallCmd(root)} {
		if cmd.Flags().Lookup("shell") == nil || cmd.Flags().ShorthandLookup("s") == nil {
			t.Errorf("%s should have --shell/-s", cmd.Use)
		}
	}
}
