package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/barq-desk/barq/internal/rbac"
)

// ErrDenied is returned by authz check when the user lacks the actions.
var ErrDenied = errors.New("access denied")

type checkResult struct {
	UserID   int64    `json:"userId" yaml:"userId"`
	Username string   `json:"username,omitempty" yaml:"username,omitempty"`
	Role     string   `json:"role,omitempty" yaml:"role,omitempty"`
	Actions  []string `json:"actions" yaml:"actions"`
	Mode     string   `json:"mode" yaml:"mode"`
	Allowed  bool     `json:"allowed" yaml:"allowed"`
}

func newAuthzCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authz",
		Short: "Inspect authorization decisions",
	}
	cmd.AddCommand(newAuthzCheckCmd(st))
	return cmd
}

func newAuthzCheckCmd(st *state) *cobra.Command {
	var (
		userID int64
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "check ACTION...",
		Short: "Report whether a user holds the given actions",
		Long: `Report whether a user holds the given actions. By default one matching
action is enough; --all requires every action. Exits non-zero when denied.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stores, err := st.openStores(ctx)
			if err != nil {
				return err
			}
			defer stores.Close()

			gate := rbac.NewGate(rbac.NewService(stores.RBAC, st.logger), nil)
			check, mode := gate.Check, "any"
			if all {
				check, mode = gate.CheckAll, "all"
			}
			subject, allowed, err := check(ctx, userID, args...)
			if err != nil {
				return err
			}
			res := checkResult{
				UserID:   userID,
				Username: subject.Username,
				Role:     subject.RoleName,
				Actions:  args,
				Mode:     mode,
				Allowed:  allowed,
			}
			if err := st.render(cmd.OutOrStdout(), res, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "USER\tROLE\tMODE\tACTIONS\tALLOWED")
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", res.UserID, res.Role, res.Mode, strings.Join(res.Actions, ","), res.Allowed)
			}); err != nil {
				return err
			}
			if !allowed {
				return ErrDenied
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "User id to check")
	cmd.Flags().BoolVar(&all, "all", false, "Require every action instead of any")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
