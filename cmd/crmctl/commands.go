package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tfxTanoli/nextperience-crm-sub001/internal/application/services"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/bootstrap"
	"github.com/tfxTanoli/nextperience-crm-sub001/internal/domain/models"
	"github.com/tfxTanoli/nextperience-crm-sub001/pkg/constants"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create any missing tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		if err := bootstrap.InitializeSchema(cmd.Context(), rt.conn.DB(), rt.logger); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenant companies.",
}

var tenantInput models.CreateCompanyInput

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a company with its default roles and an owner account.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		company, owner, err := rt.svcMgr.Companies.Provision(cmd.Context(), tenantInput)
		if err != nil {
			return err
		}
		rt.logger.Info("Tenant created", zap.String("company_id", company.ID), zap.String("owner_id", owner.ID))
		fmt.Fprintf(cmd.OutOrStdout(), "company %s (%s) created, owner %s\n", company.Name, company.ID, owner.Email)
		return nil
	},
}

var (
	resetEmail    string
	resetPassword string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts.",
}

var userResetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Set a new password for a user and revoke their sessions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		user, err := rt.svcMgr.Users.FindByEmail(cmd.Context(), resetEmail)
		if err != nil {
			return err
		}
		if err := rt.svcMgr.Users.SetPassword(cmd.Context(), user.CompanyID, user.ID, resetPassword); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", user.Email)
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run scheduled maintenance jobs on demand.",
}

var jobsRunCmd = &cobra.Command{
	Use:   "run <job>",
	Short: "Run one job now: expire_quotations, reconcile_invoices, purge_outbox, refresh_google_tokens or purge_sessions.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		scheduler := services.NewSchedulerService(rt.cfg.Scheduler, rt.logger)
		if err := scheduler.RegisterDefaults(rt.cfg.Scheduler, rt.svcMgr); err != nil {
			return err
		}
		if err := scheduler.RunNow(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "job %s finished\n", args[0])
		return nil
	},
}

func init() {
	f := tenantCreateCmd.Flags()
	f.StringVar(&tenantInput.Name, "name", "", "company name")
	f.StringVar(&tenantInput.Slug, "slug", "", "URL-safe identifier, derived from the name when empty")
	f.StringVar(&tenantInput.Currency, "currency", constants.DefaultCurrency, "ISO 4217 currency code")
	f.StringVar(&tenantInput.Timezone, "timezone", constants.DefaultTimezone, "IANA time zone")
	f.Float64Var(&tenantInput.TaxRate, "tax-rate", 0, "default tax rate in percent")
	f.IntVar(&tenantInput.QuotationValidityDays, "validity-days", constants.DefaultQuotationValidityDays, "default quotation validity")
	f.StringVar(&tenantInput.OwnerEmail, "owner-email", "", "owner login email")
	f.StringVar(&tenantInput.OwnerName, "owner-name", "", "owner full name")
	f.StringVar(&tenantInput.OwnerPassword, "owner-password", "", "owner initial password")
	_ = tenantCreateCmd.MarkFlagRequired("name")
	_ = tenantCreateCmd.MarkFlagRequired("owner-email")
	_ = tenantCreateCmd.MarkFlagRequired("owner-password")
	tenantCmd.AddCommand(tenantCreateCmd)

	userResetPasswordCmd.Flags().StringVar(&resetEmail, "email", "", "login email of the user")
	userResetPasswordCmd.Flags().StringVar(&resetPassword, "password", "", "new password")
	_ = userResetPasswordCmd.MarkFlagRequired("email")
	_ = userResetPasswordCmd.MarkFlagRequired("password")
	userCmd.AddCommand(userResetPasswordCmd)

	jobsCmd.AddCommand(jobsRunCmd)
}
