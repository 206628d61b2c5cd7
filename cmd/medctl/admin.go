package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/geocoder89/medportal/pkg/client"
	"github.com/spf13/cobra"
)

func usersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "User accounts (admin)",
	}

	var (
		params client.ListParams
		role   string
		active string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd, client.RoleAdmin); err != nil {
				return err
			}
			setFilter(&params, "role", role)
			setFilter(&params, "is_active", active)

			ctx, cancel := a.ctx(cmd)
			defer cancel()

			page, err := a.client().Users.List(ctx, params)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(page.Items))
			for _, u := range page.Items {
				rows = append(rows, []string{u.ID, u.Email, u.FullName, string(u.Role), yesNo(u.IsActive), u.CreatedAt.Format("2006-01-02")})
			}
			out := cmd.OutOrStdout()
			printTable(out, []string{"ID", "EMAIL", "NAME", "ROLE", "ACTIVE", "JOINED"}, rows)
			printFooter(out, page.Count, page.Page, page.TotalPages)
			return nil
		},
	}
	addListFlags(list.Flags(), &params)
	list.Flags().StringVar(&role, "role", "", "patient, doctor or admin")
	list.Flags().StringVar(&active, "active", "", "true or false")

	cmd.AddCommand(list)
	return cmd
}

func settingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "System settings (admin)",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show the current settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd, client.RoleAdmin); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			s, err := a.client().Settings.Get(ctx)
			if err != nil {
				return err
			}
			printSettings(cmd, s)
			return nil
		},
	}

	var (
		autoLogout, emailNotifications                                  bool
		sessionTimeout, dataRetention, maxLoginAttempts, passwordMinLen int
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change only the settings given as flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd, client.RoleAdmin); err != nil {
				return err
			}

			var in client.SettingsUpdate
			f := cmd.Flags()
			if f.Changed("auto-logout") {
				in.AutoLogout = &autoLogout
			}
			if f.Changed("email-notifications") {
				in.EmailNotifications = &emailNotifications
			}
			if f.Changed("session-timeout") {
				in.SessionTimeout = &sessionTimeout
			}
			if f.Changed("data-retention") {
				in.DataRetention = &dataRetention
			}
			if f.Changed("max-login-attempts") {
				in.MaxLoginAttempts = &maxLoginAttempts
			}
			if f.Changed("password-min-length") {
				in.PasswordMinLength = &passwordMinLen
			}
			if in == (client.SettingsUpdate{}) {
				return fmt.Errorf("nothing to change; pass at least one setting flag")
			}

			ctx, cancel := a.ctx(cmd)
			defer cancel()

			s, err := a.client().Settings.Update(ctx, in)
			if err != nil {
				return err
			}
			printSettings(cmd, s)
			return nil
		},
	}
	f := set.Flags()
	f.BoolVar(&autoLogout, "auto-logout", true, "log idle users out")
	f.BoolVar(&emailNotifications, "email-notifications", true, "send welcome and assignment emails")
	f.IntVar(&sessionTimeout, "session-timeout", 60, "minutes, 5..1440")
	f.IntVar(&dataRetention, "data-retention", 365, "days, 30..3650")
	f.IntVar(&maxLoginAttempts, "max-login-attempts", 5, "failures before lockout, 1..20")
	f.IntVar(&passwordMinLen, "password-min-length", 8, "8..64")

	cmd.AddCommand(get, set)
	return cmd
}

func printSettings(cmd *cobra.Command, s client.Settings) {
	printTable(cmd.OutOrStdout(), []string{"SETTING", "VALUE"}, [][]string{
		{"auto_logout", yesNo(s.AutoLogout)},
		{"session_timeout", strconv.Itoa(s.SessionTimeout) + "m"},
		{"email_notifications", yesNo(s.EmailNotifications)},
		{"data_retention", strconv.Itoa(s.DataRetention) + "d"},
		{"max_login_attempts", strconv.Itoa(s.MaxLoginAttempts)},
		{"password_min_length", strconv.Itoa(s.PasswordMinLength)},
	})
}

func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Dashboard counters for your role",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			s, err := a.client().Dashboard.Stats(ctx)
			if err != nil {
				return err
			}

			var rows [][]string
			add := func(name string, v int) { rows = append(rows, []string{name, strconv.Itoa(v)}) }

			switch a.session.CurrentUser().Role {
			case client.RoleAdmin:
				add("patients", s.TotalPatients)
				add("doctors", s.TotalDoctors)
				add("approved doctors", s.ApprovedDoctors)
				add("pending doctors", s.PendingDoctors)
				add("mappings", s.TotalMappings)
				add("active mappings", s.ActiveMappings)
				for _, k := range sortedKeys(s.UsersByRole) {
					add("users: "+k, s.UsersByRole[k])
				}
			case client.RoleDoctor:
				add("my patients", s.MyPatients)
				add("active mappings", s.ActiveMappings)
				for _, k := range sortedKeys(s.MappingsByStatus) {
					add("mappings: "+k, s.MappingsByStatus[k])
				}
			default:
				add("my doctors", s.MyDoctors)
				add("active mappings", s.ActiveMappings)
			}

			printTable(cmd.OutOrStdout(), []string{"METRIC", "COUNT"}, rows)
			if s.Cache != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "(cache %s)\n", s.Cache)
			}
			return nil
		},
	}
}

func reportCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summary report (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd, client.RoleAdmin); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			r, err := a.client().Dashboard.Report(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, r)
			}

			var rows [][]string
			group := func(name string, m map[string]int) {
				for _, k := range sortedKeys(m) {
					rows = append(rows, []string{name, k, strconv.Itoa(m[k])})
				}
			}
			group("patients by gender", r.PatientsByGender)
			group("doctors by specialization", r.DoctorsBySpecialization)
			group("mappings by status", r.MappingsByStatus)

			total := 0
			for _, d := range r.RegistrationsLast30Days {
				total += d.Count
			}
			rows = append(rows, []string{"registrations", "last 30 days", strconv.Itoa(total)})

			printTable(out, []string{"GROUP", "KEY", "COUNT"}, rows)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw report, including per-day registrations")
	return cmd
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
