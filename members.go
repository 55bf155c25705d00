package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"library-api/library"
)

func newMemberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage members without going through the API",
	}
	cmd.AddCommand(newMemberAddCmd(), newMemberListCmd())
	return cmd
}

func newMemberAddCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a member, prompting for the password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return errors.New("--email is required")
			}

			password, err := readPassword(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Enter password for %s: ", email))
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if password == "" {
				return errors.New("password cannot be empty")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			m, err := a.lm.RegisterMember(cmd.Context(), email, password)
			if errors.Is(err, library.ErrDuplicateEmail) {
				return fmt.Errorf("a member with email %s already exists", email)
			}
			if err != nil {
				return err
			}
			a.log.Info("member added", zap.Int64("member_id", m.ID))
			fmt.Fprintf(cmd.OutOrStdout(), "Added member '%s' with ID %d\n", m.Email, m.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address of the new member")
	return cmd
}

func newMemberListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			members, err := a.lm.ListMembers(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(members) == 0 {
				fmt.Fprintln(out, "No members registered.")
				return nil
			}
			fmt.Fprintf(out, "%-5s %-40s\n", "ID", "Email")
			fmt.Fprintln(out, strings.Repeat("-", 46))
			for _, m := range members {
				fmt.Fprintf(out, "%-5d %-40s\n", m.ID, truncateString(m.Email, 40))
			}
			return nil
		},
	}
}
