package completion

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// Shell is a shell we can generate completion scripts for.
type Shell string

const (
	Bash       Shell = "bash"
	Zsh        Shell = "zsh"
	Fish       Shell = "fish"
	Powershell Shell = "powershell"
)

// ParseShell validates a --shell value.
func ParseShell(name string) (Shell, error) {
	switch s := Shell(name); s {
	case Bash, Zsh, Fish, Powershell:
		return s, nil
	default:
		return "", fmt.Errorf("unsupported shell: %s", name)
	}
}

// DetectShell reads the login shell from SHELL through getenv.
func DetectShell(getenv func(string) string) (Shell, error) {
	shellPath := getenv("SHELL")
	if shellPath == "" {
		if runtime.GOOS == "windows" {
			return Powershell, nil
		}
		return "", fmt.Errorf("unable to detect shell: SHELL environment variable not set")
	}
	shell, err := ParseShell(filepath.Base(shellPath))
	if err != nil || shell == Powershell {
		return "", fmt.Errorf("unsupported shell: %s", filepath.Base(shellPath))
	}
	return shell, nil
}

// ScriptPath is where the completion script for program lives under home.
func ScriptPath(shell Shell, home, program string) (string, error) {
	switch shell {
	case Bash:
		return filepath.Join(home, ".bash_completion.d", program), nil
	case Zsh:
		return filepath.Join(home, ".zsh", "completion", "_"+program), nil
	case Fish:
		return filepath.Join(home, ".config", "fish", "completions", program+".fish"), nil
	case Powershell:
		if runtime.GOOS == "windows" {
			return filepath.Join(home, "Documents", "WindowsPowerShell", "Scripts", program+".ps1"), nil
		}
		return "", fmt.Errorf("powershell not supported on %s", runtime.GOOS)
	default:
		return "", fmt.Errorf("unsupported shell: %s", shell)
	}
}
