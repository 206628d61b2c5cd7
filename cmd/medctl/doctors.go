package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/geocoder89/medportal/pkg/client"
	"github.com/spf13/cobra"
)

func doctorsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "doctors",
		Aliases: []string{"doctor"},
		Short:   "List doctors and manage approval",
	}
	cmd.AddCommand(doctorsListCmd(a), doctorsGetCmd(a), doctorsApproveCmd(a))
	return cmd
}

func doctorsListCmd(a *app) *cobra.Command {
	var (
		params         client.ListParams
		specialization string
		approved       string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List doctors (non-admins only see approved doctors)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd); err != nil {
				return err
			}
			setFilter(&params, "specialization", specialization)
			setFilter(&params, "approved", approved)

			ctx, cancel := a.ctx(cmd)
			defer cancel()

			page, err := a.client().Doctors.List(ctx, params)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(page.Items))
			for _, d := range page.Items {
				rows = append(rows, []string{
					d.ID, d.FullName, strings.Join(d.Specializations, ", "),
					d.LicenseNumber, strconv.Itoa(d.YearsOfExperience), yesNo(d.IsApproved),
				})
			}
			out := cmd.OutOrStdout()
			printTable(out, []string{"ID", "NAME", "SPECIALIZATIONS", "LICENSE", "YEARS", "APPROVED"}, rows)
			printFooter(out, page.Count, page.Page, page.TotalPages)
			return nil
		},
	}

	addListFlags(cmd.Flags(), &params)
	cmd.Flags().StringVar(&specialization, "specialization", "", "filter by specialization")
	cmd.Flags().StringVar(&approved, "approved", "", "admin only: true or false")
	return cmd
}

func doctorsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one doctor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			d, err := a.client().Doctors.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), d)
		},
	}
}

func doctorsApproveCmd(a *app) *cobra.Command {
	var revoke bool

	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a doctor, or revoke approval with --revoke (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd, client.RoleAdmin); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			d, err := a.client().Doctors.SetApproval(ctx, args[0], !revoke)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s approved: %s\n", d.FullName, yesNo(d.IsApproved))
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "withdraw approval instead")
	return cmd
}
