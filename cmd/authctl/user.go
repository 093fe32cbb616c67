package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"schnitzel-auth/internal/app"
	"schnitzel-auth/internal/config"
	"schnitzel-auth/internal/service"
)

// NewUserCmd agrupa los comandos sobre usuarios.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Gestion de usuarios",
	}
	cmd.AddCommand(newUserCreateCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var input service.RegisterInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Crea un usuario en el backend configurado",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svcs, closeFn, err := loadServices(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			user, err := svcs.Users.Register(cmd.Context(), input)
			if err != nil {
				return oops.Code("USER_CREATE_FAILED").With("name", input.Name).Wrap(err)
			}
			cmd.Printf("created user %s (%s)\n", user.Name, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Name, "name", "", "nombre de usuario")
	cmd.Flags().StringVar(&input.Email, "email", "", "correo (opcional)")
	cmd.Flags().StringVar(&input.Password, "password", "", "contraseña")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// loadServices construye configuracion, store y servicios para un comando.
func loadServices(cmd *cobra.Command) (*app.Services, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	logger := newLogger()
	store, err := app.OpenStore(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, oops.Code("STORE_OPEN_FAILED").With("backend", cfg.StoreBackend).Wrap(err)
	}
	svcs, err := app.NewServices(cfg, logger, store.Users, app.NewEmailSender(cfg, logger))
	if err != nil {
		store.Close()
		return nil, nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return svcs, func() {
		store.Close()
		_ = logger.Sync()
	}, nil
}
