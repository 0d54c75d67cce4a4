package cli

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hrdesk/hrdesk/internal/rbac"
	"github.com/hrdesk/hrdesk/internal/shared"
)

type rolePermissions struct {
	Role        rbac.Role         `json:"role" yaml:"role"`
	Permissions []rbac.Permission `json:"permissions" yaml:"permissions"`
}

func newPermissionsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "permissions [role]",
		Short: "Show the permissions granted to each role",
		Long: `Print the static role to permission table.

Examples:
  hrdeskctl permissions
  hrdeskctl permissions manager -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := rbac.DefaultRegistry()
			roles := registry.Roles()
			if len(args) == 1 {
				role, err := rbac.ParseRole(args[0])
				if err != nil {
					return err
				}
				roles = []rbac.Role{role}
			}
			out := make([]rolePermissions, 0, len(roles))
			for _, role := range roles {
				out = append(out, rolePermissions{Role: role, Permissions: registry.PermissionsOf(role)})
			}
			if done, err := opts.structured(cmd.OutOrStdout(), out); done {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ROLE\tPERMISSION")
			for _, rp := range out {
				for _, perm := range rp.Permissions {
					fmt.Fprintf(w, "%s\t%s\n", rp.Role, perm)
				}
			}
			return w.Flush()
		},
	}
}

type decideOptions struct {
	roles       []string
	token       string
	defaultDeny bool
}

type decisionView struct {
	Path     string   `json:"path" yaml:"path"`
	Roles    []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Outcome  string   `json:"outcome" yaml:"outcome"`
	Public   bool     `json:"public" yaml:"public"`
	Rule     string   `json:"rule,omitempty" yaml:"rule,omitempty"`
	Redirect string   `json:"redirect,omitempty" yaml:"redirect,omitempty"`
}

func newDecideCommand(opts *globalOptions) *cobra.Command {
	var dopts decideOptions
	cmd := &cobra.Command{
		Use:   "decide <path>",
		Short: "Evaluate the route table for a path",
		Long: `Run the same access decision the server applies to incoming requests.

Without --role or --token the request is treated as anonymous. A token is
verified with JWT_SECRET and JWT_ISSUER from the environment.

Examples:
  hrdeskctl decide /users --role MANAGER
  hrdeskctl decide /api/leave-requests/approve --role EMPLOYEE --role MANAGER
  hrdeskctl decide /reports --token "$TOKEN"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !strings.HasPrefix(path, "/") {
				return fmt.Errorf("path must start with /: %q", path)
			}
			var tableOpts []rbac.RouteTableOption
			if dopts.defaultDeny {
				tableOpts = append(tableOpts, rbac.WithDefaultDeny())
			}
			table := rbac.DefaultRouteTable(tableOpts...)

			roles, present, err := resolveRoles(dopts)
			if err != nil {
				return err
			}
			decision := table.DecideRoles(path, present, roles)
			view := decisionView{
				Path:    path,
				Roles:   roles.Strings(),
				Outcome: decision.Outcome.String(),
				Public:  decision.Public,
			}
			if decision.Rule != nil {
				view.Rule = decision.Rule.Prefix
			}
			switch decision.Outcome {
			case rbac.RedirectLogin:
				view.Redirect = rbac.LoginPath + "?" + rbac.CallbackParam + "=" + url.QueryEscape(decision.Callback)
			case rbac.RedirectUnauthorized:
				view.Redirect = rbac.UnauthorizedPath
			}

			if done, err := opts.structured(cmd.OutOrStdout(), view); done {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Path:\t%s\n", view.Path)
			if len(view.Roles) > 0 {
				fmt.Fprintf(w, "Roles:\t%s\n", strings.Join(view.Roles, ", "))
			} else {
				fmt.Fprintf(w, "Roles:\t(anonymous)\n")
			}
			fmt.Fprintf(w, "Outcome:\t%s\n", view.Outcome)
			if view.Rule != "" {
				fmt.Fprintf(w, "Rule:\t%s\n", view.Rule)
			}
			if view.Redirect != "" {
				fmt.Fprintf(w, "Redirect:\t%s\n", view.Redirect)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringArrayVar(&dopts.roles, "role", nil, "role held by the caller (repeatable)")
	cmd.Flags().StringVar(&dopts.token, "token", "", "access token to verify instead of --role")
	cmd.Flags().BoolVar(&dopts.defaultDeny, "default-deny", false, "deny paths no rule covers")
	cmd.MarkFlagsMutuallyExclusive("role", "token")
	return cmd
}

func resolveRoles(opts decideOptions) (rbac.RoleSet, bool, error) {
	if opts.token != "" {
		issuer := os.Getenv("JWT_ISSUER")
		if issuer == "" {
			issuer = "hrdesk"
		}
		tokens, err := shared.NewTokenManager(os.Getenv("JWT_SECRET"), issuer)
		if err != nil {
			return nil, false, err
		}
		claims, err := tokens.VerifyType(opts.token, shared.TokenTypeAccess)
		if err != nil {
			return nil, false, fmt.Errorf("verify token: %w", err)
		}
		principal, err := rbac.PrincipalFromClaims(claims)
		if err != nil {
			return nil, false, err
		}
		return principal.Roles, true, nil
	}
	if len(opts.roles) == 0 {
		return nil, false, nil
	}
	set, err := rbac.NewRoleSet(opts.roles...)
	if err != nil {
		return nil, false, err
	}
	return set, true, nil
}
