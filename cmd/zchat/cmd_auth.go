package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/z-chat/internal/service/profile"
)

// readSecret returns flagValue, or the first line of in when the flag is empty.
func readSecret(in io.Reader, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCmd(getApp func() *app) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username-or-email>",
		Short: "Sign in and keep the session for later runs",
		Long: `Sign in with a username or email. The password is read from --password,
or from the first line of standard input when the flag is omitted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			secret, err := readSecret(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}

			sess, err := a.auth.Login(cmd.Context(), args[0], secret)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", sess.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func newRegisterCmd(getApp func() *app) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			secret, err := readSecret(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}

			sess, err := a.auth.Register(cmd.Context(), username, email, secret)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered and signed in as %s\n", sess.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func newLogoutCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			if !a.auth.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			a.auth.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			p, err := a.profiles.Resolve(cmd.Context())
			if errors.Is(err, profile.ErrReauthenticate) {
				return errors.New("session expired: run \"zchat login\" again")
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if p == nil {
				fmt.Fprintln(out, "Not signed in")
				return nil
			}
			fmt.Fprintf(out, "%s (id %s)\n", p.Username, p.ID)
			if p.Email != "" {
				fmt.Fprintf(out, "email:   %s\n", p.Email)
			}
			if !p.CreatedAt.IsZero() {
				fmt.Fprintf(out, "joined:  %s\n", p.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
