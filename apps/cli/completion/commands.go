package completion

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewInstallCmd creates the install-completion command.
func NewInstallCmd(root *cobra.Command) *cobra.Command {
	var shellFlag string

	cmd := &cobra.Command{
		Use:   "install-completion",
		Short: "Install shell completion for " + root.Name(),
		Long: `Install the shell completion script into the user's home directory.

The shell is detected from $SHELL unless --shell is given.
Supports bash, zsh, fish, and powershell (Windows only).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			installer, shell, err := prepare(root, shellFlag)
			if err != nil {
				return err
			}
			path, err := installer.Install(shell)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Shell completion installed for %s: %s\n", shell, path)
			printActivation(out, shell, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&shellFlag, "shell", "s", "", "Shell (bash, zsh, fish, powershell). Auto-detected if not specified.")
	return cmd
}

// NewUninstallCmd creates the uninstall-completion command.
func NewUninstallCmd(root *cobra.Command) *cobra.Command {
	var shellFlag string

	cmd := &cobra.Command{
		Use:   "uninstall-completion",
		Short: "Remove shell completion for " + root.Name(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			installer, shell, err := prepare(root, shellFlag)
			if err != nil {
				return err
			}
			path, err := installer.Uninstall(shell)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Shell completion removed for %s: %s\nRestart your shell to complete removal.\n", shell, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&shellFlag, "shell", "s", "", "Shell (bash, zsh, fish, powershell). Auto-detected if not specified.")
	return cmd
}

func prepare(root *cobra.Command, shellFlag string) (*Installer, Shell, error) {
	shell, err := resolveShell(shellFlag, os.Getenv)
	if err != nil {
		return nil, "", err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewInstaller(afero.NewOsFs(), home, root), shell, nil
}

func resolveShell(flag string, getenv func(string) string) (Shell, error) {
	if flag != "" {
		return ParseShell(flag)
	}
	shell, err := DetectShell(getenv)
	if err != nil {
		return "", fmt.Errorf("%w (specify the shell with --shell)", err)
	}
	return shell, nil
}

func printActivation(out io.Writer, shell Shell, path string) {
	switch shell {
	case Bash:
		fmt.Fprintln(out, "Open a new terminal to use it.")
	case Zsh:
		fmt.Fprintf(out, "Ensure ~/.zshrc contains:\n  fpath=(%s $fpath)\n  autoload -Uz compinit && compinit\n", filepath.Dir(path))
	case Fish:
		fmt.Fprintln(out, "Run 'exec fish' to activate it in the current session.")
	case Powershell:
		fmt.Fprintf(out, "Add this to your PowerShell profile:\n  . %s\n", path)
	}
}
