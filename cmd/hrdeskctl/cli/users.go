package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrdesk/hrdesk/internal/app"
	"github.com/hrdesk/hrdesk/internal/platform/docstore"
	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/users"
)

const cliActor = "hrdeskctl"

func newUserCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCommand(opts))
	return cmd
}

type userCreateOptions struct {
	name       string
	email      string
	password   string
	roles      []string
	department string
	managerID  string
}

func newUserCreateCommand(opts *globalOptions) *cobra.Command {
	var copts userCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user directly in MongoDB",
		Long: `Create an account without going through the API. This is how the
first ADMIN is bootstrapped on a fresh deployment.

Examples:
  hrdeskctl user create --name "Ada Admin" --email ada@example.com --password 's3cret-pass' --role ADMIN
  hrdeskctl user create --name Max --email max@example.com --password 'changeme1' --role MANAGER --department Ops`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			roles, err := rbac.NewRoleSet(copts.roles...)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			client, err := docstore.New(cmd.Context(), cfg.MongoURI)
			if err != nil {
				return fmt.Errorf("connect mongo: %w", err)
			}
			defer func() { _ = client.Disconnect(cmd.Context()) }()

			database := client.Database(cfg.MongoDatabase)
			if err := docstore.EnsureIndexes(cmd.Context(), database); err != nil {
				return err
			}
			logger := app.NewLogger(cfg)
			service := users.NewService(users.NewMongoRepository(database), nil, nil, logger)
			user, err := service.Create(cmd.Context(), cliActor, users.CreateInput{
				Name:       copts.name,
				Email:      copts.email,
				Password:   copts.password,
				Roles:      roles,
				Department: copts.department,
				ManagerID:  copts.managerID,
			})
			if err != nil {
				return err
			}
			logger.Info("user created", slog.String("user_id", user.ID), slog.String("actor", cliActor))

			summary := map[string]any{"id": user.ID, "email": user.Email, "roles": user.Roles.Strings()}
			if done, err := opts.structured(cmd.OutOrStdout(), summary); done {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s) with roles %s\n", user.Email, user.ID, strings.Join(user.Roles.Strings(), ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&copts.name, "name", "", "display name")
	cmd.Flags().StringVar(&copts.email, "email", "", "login email")
	cmd.Flags().StringVar(&copts.password, "password", "", "initial password")
	cmd.Flags().StringArrayVar(&copts.roles, "role", []string{string(rbac.RoleEmployee)}, "role to grant (repeatable)")
	cmd.Flags().StringVar(&copts.department, "department", "", "department name")
	cmd.Flags().StringVar(&copts.managerID, "manager", "", "manager user id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
