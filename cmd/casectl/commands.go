package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository/postgres"
	"github.com/megcare/caseflow/pkg/security"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			if err := postgres.Migrate(cmd.Context(), a.db); err != nil {
				return err
			}
			a.log.Info("schema applied", zap.String("database", a.cfg.Database.Name))
			return nil
		},
	}
}

func (a *app) hospitalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hospital",
		Short: "Manage hospitals",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a hospital",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			subdomain, _ := cmd.Flags().GetString("subdomain")
			inactive, _ := cmd.Flags().GetBool("inactive")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if err := validateSubdomain(subdomain); err != nil {
				return err
			}
			if err := a.open(); err != nil {
				return err
			}

			tenant := &model.Tenant{Name: name, Subdomain: subdomain, Status: model.TenantStatusActive}
			if inactive {
				tenant.Status = model.TenantStatusInactive
			}
			if err := a.repos.Tenants.Create(cmd.Context(), tenant); err != nil {
				return err
			}
			a.log.Info("hospital created",
				zap.Int64("id", tenant.ID),
				zap.String("subdomain", tenant.Subdomain),
				zap.String("status", tenant.Status))
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().String("subdomain", "", "Subdomain under the main domain")
	createCmd.Flags().Bool("inactive", false, "Create the hospital inactive")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List hospitals",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(); err != nil {
				return err
			}
			tenants, err := a.repos.Tenants.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSUBDOMAIN\tNAME\tSTATUS")
			for _, t := range tenants {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.ID, t.Subdomain, t.Name, t.Status)
			}
			return w.Flush()
		},
	}

	setStatusCmd := &cobra.Command{
		Use:   "set-status <id> <active|inactive>",
		Short: "Activate or deactivate a hospital",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid hospital id %q", args[0])
			}
			status, err := parseTenantStatus(args[1])
			if err != nil {
				return err
			}
			if err := a.open(); err != nil {
				return err
			}
			if err := a.repos.Tenants.UpdateStatus(cmd.Context(), id, status); err != nil {
				return err
			}
			a.log.Info("hospital status updated", zap.Int64("id", id), zap.String("status", status))
			return nil
		},
	}

	cmd.AddCommand(createCmd, listCmd, setStatusCmd)
	return cmd
}

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage principals",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a principal",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in newUser
			in.Email, _ = cmd.Flags().GetString("email")
			in.Name, _ = cmd.Flags().GetString("name")
			in.Role, _ = cmd.Flags().GetString("role")
			in.HospitalID, _ = cmd.Flags().GetInt64("hospital")
			in.Password, _ = cmd.Flags().GetString("password")
			if in.Name == "" {
				in.Name = in.Email
			}
			if err := a.open(); err != nil {
				return err
			}

			user, err := createUser(cmd.Context(), a.repos.Users, a.repos.Roles, a.repos.Tenants,
				security.NewBcryptHasher(a.cfg.Auth.BcryptCost), in)
			if err != nil {
				return err
			}
			a.log.Info("user created",
				zap.Int64("id", user.ID),
				zap.String("email", user.Email),
				zap.String("role", user.RoleType.String()),
				zap.Int64("hospital_id", user.HospitalID))
			return nil
		},
	}
	createCmd.Flags().String("email", "", "E-mail address")
	createCmd.Flags().String("name", "", "Display name (defaults to the e-mail)")
	createCmd.Flags().String("role", "", "Role: doctor, scientist, technician, administrator, nurse or super")
	createCmd.Flags().Int64("hospital", 0, "Hospital id (not used for super)")
	createCmd.Flags().String("password", "", "Password for local login; omit for single sign-on only")

	cmd.AddCommand(createCmd)
	return cmd
}
