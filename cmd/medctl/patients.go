package main

import (
	"fmt"
	"strconv"

	"github.com/geocoder89/medportal/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// addListFlags binds the paging and search flags every list command shares.
func addListFlags(f *pflag.FlagSet, p *client.ListParams) {
	f.IntVar(&p.Page, "page", 1, "page number")
	f.IntVar(&p.PageSize, "page-size", 20, "items per page (max 100)")
	f.StringVarP(&p.Search, "search", "s", "", "case-insensitive name/email search")
}

func setFilter(p *client.ListParams, key, value string) {
	if value == "" {
		return
	}
	if p.Filters == nil {
		p.Filters = map[string]string{}
	}
	p.Filters[key] = value
}

func patientsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "patients",
		Aliases: []string{"patient"},
		Short:   "List and manage patients",
	}
	cmd.AddCommand(patientsListCmd(a), patientsGetCmd(a), patientsCreateCmd(a), patientsDeleteCmd(a))
	return cmd
}

func patientsListCmd(a *app) *cobra.Command {
	var (
		params client.ListParams
		gender string
		mine   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the patients visible to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd); err != nil {
				return err
			}
			setFilter(&params, "gender", gender)

			ctx, cancel := a.ctx(cmd)
			defer cancel()

			list := a.client().Patients.List
			if mine {
				if !a.session.HasRole(client.RoleDoctor) {
					return fmt.Errorf("--mine is only available to doctors")
				}
				list = a.client().Patients.Mine
			}

			page, err := list(ctx, params)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(page.Items))
			for _, p := range page.Items {
				rows = append(rows, []string{p.ID, p.FullName, strconv.Itoa(p.Age), p.Gender, p.ContactNumber, p.Condition})
			}
			out := cmd.OutOrStdout()
			printTable(out, []string{"ID", "NAME", "AGE", "GENDER", "CONTACT", "CONDITION"}, rows)
			printFooter(out, page.Count, page.Page, page.TotalPages)
			return nil
		},
	}

	addListFlags(cmd.Flags(), &params)
	cmd.Flags().StringVar(&gender, "gender", "", "filter by gender: male, female or other")
	cmd.Flags().BoolVar(&mine, "mine", false, "only patients mapped to me (doctors)")
	return cmd
}

func patientsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			p, err := a.client().Patients.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
}

func patientsCreateCmd(a *app) *cobra.Command {
	var in client.PatientInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a patient record (admin, doctor)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd, client.RoleAdmin, client.RoleDoctor); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			p, err := a.client().Patients.Create(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created patient %s\n", p.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.FullName, "name", "", "full name")
	f.StringVar(&in.Email, "email", "", "email")
	f.IntVar(&in.Age, "age", 0, "age")
	f.StringVar(&in.Gender, "gender", "", "male, female or other")
	f.StringVar(&in.ContactNumber, "contact", "", "contact number (digits)")
	f.StringVar(&in.Address, "address", "", "address")
	f.StringVar(&in.MedicalHistory, "history", "", "medical history")
	f.StringVar(&in.Condition, "condition", "", "current condition")
	for _, name := range []string{"name", "age", "gender", "contact"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func patientsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a patient record (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd, client.RoleAdmin); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			if err := a.client().Patients.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted patient %s\n", args[0])
			return nil
		},
	}
}
