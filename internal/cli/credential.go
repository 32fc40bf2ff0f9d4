package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the stored inference credential",
	}
	cmd.AddCommand(newCredentialSetCmd())
	cmd.AddCommand(newCredentialForgetCmd())
	cmd.AddCommand(newCredentialStatusCmd())
	return cmd
}

func newCredentialSetCmd() *cobra.Command {
	var persist bool

	cmd := &cobra.Command{
		Use:   "set [credential]",
		Short: "Store the inference credential",
		Long: `Store the credential used for edit requests.

When no argument is given the credential is read from stdin, without echo
when stdin is a terminal. With --persist=false any stored copy is removed
and the value only lasts for this invocation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := contextOrBackground(cmd)
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			value := ""
			if len(args) == 1 {
				value = args[0]
			} else {
				value, err = readSecret(cmd)
				if err != nil {
					return err
				}
			}
			value = strings.TrimSpace(value)
			if value == "" {
				return errors.New("credential must not be empty")
			}

			store, err := openCredentials(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Set(ctx, value, persist); err != nil {
				return err
			}
			if persist {
				fmt.Fprintln(cmd.OutOrStdout(), "credential stored")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "credential not persisted; stored copy removed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&persist, "persist", true, "persist the credential across runs")
	return cmd
}

func newCredentialForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Remove the stored inference credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := contextOrBackground(cmd)
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openCredentials(ctx, cfg, newLogger(cmd, cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Forget(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credential forgotten")
			return nil
		},
	}
}

func newCredentialStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a credential is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := contextOrBackground(cmd)
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openCredentials(ctx, cfg, newLogger(cmd, cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			switch {
			case store.Persisted():
				fmt.Fprintln(cmd.OutOrStdout(), "credential: stored")
			case store.Get() != "":
				fmt.Fprintln(cmd.OutOrStdout(), "credential: set for this process only")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "credential: not set")
			}
			return nil
		},
	}
}

// readSecret reads one line from stdin, hiding input on a terminal.
func readSecret(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Credential: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read credential: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}
	return line, nil
}
