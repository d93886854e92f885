package completion

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/acm19/normalise/internal/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Installer writes and removes completion scripts for a cobra root command.
type Installer struct {
	fs   afero.Fs
	home string
	root *cobra.Command
}

// NewInstaller creates an Installer rooted at the user's home directory.
func NewInstaller(fs afero.Fs, home string, root *cobra.Command) *Installer {
	return &Installer{fs: fs, home: home, root: root}
}

// bashrcFile is sourced by bash-completion for user scripts.
func (i *Installer) bashrcFile() string {
	return filepath.Join(i.home, ".bash_completion")
}

// Install generates the script for shell and returns where it was written.
func (i *Installer) Install(shell Shell) (string, error) {
	path, err := ScriptPath(shell, i.home, i.root.Name())
	if err != nil {
		return "", err
	}

	var script bytes.Buffer
	if err := i.generate(shell, &script); err != nil {
		return "", fmt.Errorf("failed to generate %s completion: %w", shell, err)
	}

	if err := i.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create completion directory: %w", err)
	}
	if err := afero.WriteFile(i.fs, path, script.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write completion file: %w", err)
	}

	if shell == Bash {
		if err := i.addSourceLine(path); err != nil {
			logger.Warn("Could not enable bash auto-load", "file", i.bashrcFile(), "error", err)
		}
	}
	return path, nil
}

// Uninstall removes the script for shell and returns the removed path.
func (i *Installer) Uninstall(shell Shell) (string, error) {
	path, err := ScriptPath(shell, i.home, i.root.Name())
	if err != nil {
		return "", err
	}
	if exists, _ := afero.Exists(i.fs, path); !exists {
		return "", fmt.Errorf("completion not installed for %s (expected at %s)", shell, path)
	}

	if shell == Bash {
		if err := i.removeSourceLine(path); err != nil {
			logger.Warn("Could not disable bash auto-load", "file", i.bashrcFile(), "error", err)
		}
	}
	if err := i.fs.Remove(path); err != nil {
		return "", fmt.Errorf("failed to remove completion file: %w", err)
	}
	return path, nil
}

func (i *Installer) generate(shell Shell, w *bytes.Buffer) error {
	switch shell {
	case Bash:
		return i.root.GenBashCompletionV2(w, true)
	case Zsh:
		return i.root.GenZshCompletion(w)
	case Fish:
		return i.root.GenFishCompletion(w, true)
	case Powershell:
		return i.root.GenPowerShellCompletionWithDesc(w)
	default:
		return fmt.Errorf("unsupported shell: %s", shell)
	}
}

// addSourceLine is idempotent: any existing line mentioning scriptPath counts.
func (i *Installer) addSourceLine(scriptPath string) error {
	content, err := afero.ReadFile(i.fs, i.bashrcFile())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if strings.Contains(string(content), scriptPath) {
		return nil
	}

	var b strings.Builder
	b.Write(content)
	if len(content) > 0 && content[len(content)-1] != '\n' {
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "source %s\n", scriptPath)
	return afero.WriteFile(i.fs, i.bashrcFile(), []byte(b.String()), 0644)
}

func (i *Installer) removeSourceLine(scriptPath string) error {
	content, err := afero.ReadFile(i.fs, i.bashrcFile())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var kept []string
	for _, line := range strings.Split(string(content), "\n") {
		if !strings.Contains(line, scriptPath) {
			kept = append(kept, line)
		}
	}
	return afero.WriteFile(i.fs, i.bashrcFile(), []byte(strings.Join(kept, "\n")), 0644)
}
