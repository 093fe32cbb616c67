package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCmd crea el comando raiz de authctl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "authctl",
		Short:        "Herramientas de operacion del servicio de autenticacion",
		SilenceUsage: true,
	}

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewUserCmd())
	cmd.AddCommand(NewTokenCmd())
	cmd.AddCommand(NewEmailCmd())

	return cmd
}

func newLogger() *zap.Logger {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
