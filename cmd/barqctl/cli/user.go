package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/barq-desk/barq/internal/auth"
	"github.com/barq-desk/barq/internal/rbac"
	"github.com/barq-desk/barq/internal/users"
)

func newUserCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserCreateCmd(st))
	return cmd
}

func newUserCreateCmd(st *state) *cobra.Command {
	var in users.CreateInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with a role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Username = auth.NormalizeUsername(in.Username)
			if err := validator.New().Struct(in); err != nil {
				return fmt.Errorf("invalid user: %w", err)
			}
			ctx := cmd.Context()
			stores, err := st.openStores(ctx)
			if err != nil {
				return err
			}
			defer stores.Close()

			svc := users.NewService(stores.Users, rbac.NewService(stores.RBAC, st.logger), st.logger)
			created, err := svc.CreateUser(ctx, 0, in)
			if err != nil {
				return err
			}
			return st.render(cmd.OutOrStdout(), created, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ID\tUSERNAME\tROLE")
				fmt.Fprintf(tw, "%d\t%s\t%s\n", created.ID, created.Username, created.Role)
			})
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "Login name")
	cmd.Flags().StringVar(&in.Password, "password", "", "Initial password (8-72 characters)")
	cmd.Flags().StringVar(&in.Role, "role", "", "Role name: maker, checker or admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}
