package main

import (
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewTokenCmd agrupa los comandos sobre tokens.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emision de tokens",
	}
	cmd.AddCommand(newIssueConfirmationCmd())
	cmd.AddCommand(newRequestResetCmd())
	return cmd
}

func newIssueConfirmationCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "issue-confirmation",
		Short: "Emite un token de confirmacion de correo para un usuario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svcs, closeFn, err := loadServices(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			token, err := svcs.Tokens.IssueConfirmationToken(subject, ttl)
			if err != nil {
				return oops.Code("TOKEN_ISSUE_FAILED").With("subject", subject).Wrap(err)
			}
			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "id del usuario")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "vida del token (por defecto CONFIRMATION_TTL)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newRequestResetCmd() *cobra.Command {
	var emailAddr string
	cmd := &cobra.Command{
		Use:   "request-reset",
		Short: "Genera un token de reset y envia el correo al usuario",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svcs, closeFn, err := loadServices(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svcs.Tokens.RequestReset(cmd.Context(), emailAddr); err != nil {
				return oops.Code("RESET_REQUEST_FAILED").Wrap(err)
			}
			cmd.Println("reset email sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&emailAddr, "email", "", "correo del usuario")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
