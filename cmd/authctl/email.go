package main

import (
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"schnitzel-auth/internal/app"
	"schnitzel-auth/internal/config"
	"schnitzel-auth/internal/email"
)

// NewEmailCmd agrupa los comandos de correo.
func NewEmailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Herramientas de correo",
	}
	cmd.AddCommand(newEmailTestCmd())
	return cmd
}

func newEmailTestCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Envia un correo de prueba con la configuracion SMTP actual",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Parse()
			if err != nil {
				return oops.Code("CONFIG_INVALID").Wrap(err)
			}
			logger := newLogger()
			defer func() { _ = logger.Sync() }()

			msg, err := email.RenderTest(time.Now())
			if err != nil {
				return err
			}
			sender := app.NewEmailSender(cfg, logger)
			if err := sender.Send(cmd.Context(), to, msg.Subject, msg.HTML); err != nil {
				return oops.Code("EMAIL_SEND_FAILED").With("to", to).Wrap(err)
			}
			cmd.Printf("test email sent to %s\n", to)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "destinatario")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
