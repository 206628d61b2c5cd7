package main

import (
	"fmt"
	"strings"

	"github.com/geocoder89/medportal/pkg/client"
	"github.com/spf13/cobra"
)

func mappingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mappings",
		Aliases: []string{"mapping"},
		Short:   "Patient to doctor assignments",
	}
	cmd.AddCommand(mappingsListCmd(a), mappingsCreateCmd(a), mappingsDeleteCmd(a), mappingsStatusCmd(a))
	return cmd
}

func mappingsListCmd(a *app) *cobra.Command {
	var (
		params    client.ListParams
		status    string
		doctorID  string
		patientID string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the mappings visible to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd); err != nil {
				return err
			}
			setFilter(&params, "status", status)
			setFilter(&params, "doctor_id", doctorID)

			ctx, cancel := a.ctx(cmd)
			defer cancel()

			var (
				page client.Page[client.Mapping]
				err  error
			)
			if patientID != "" {
				page, err = a.client().Mappings.ByPatient(ctx, patientID, params)
			} else {
				page, err = a.client().Mappings.List(ctx, params)
			}
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(page.Items))
			for _, m := range page.Items {
				rows = append(rows, []string{
					m.ID, m.PatientName, m.DoctorName, m.Status,
					strings.Join(m.Symptoms, ", "), m.CreatedAt.Format("2006-01-02"),
				})
			}
			out := cmd.OutOrStdout()
			printTable(out, []string{"ID", "PATIENT", "DOCTOR", "STATUS", "SYMPTOMS", "CREATED"}, rows)
			printFooter(out, page.Count, page.Page, page.TotalPages)
			return nil
		},
	}

	addListFlags(cmd.Flags(), &params)
	cmd.Flags().StringVar(&status, "status", "", "active, inactive or completed")
	cmd.Flags().StringVar(&doctorID, "doctor", "", "doctor id")
	cmd.Flags().StringVar(&patientID, "patient", "", "patient id")
	return cmd
}

func mappingsCreateCmd(a *app) *cobra.Command {
	var in client.MappingInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Assign a patient to a doctor (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd, client.RoleAdmin); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			m, err := a.client().Mappings.Create(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created mapping %s (%s -> %s)\n", m.ID, m.PatientName, m.DoctorName)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.PatientID, "patient", "", "patient id")
	f.StringVar(&in.DoctorID, "doctor", "", "doctor id")
	f.StringVar(&in.Status, "status", "", "initial status (default active)")
	f.StringSliceVar(&in.Symptoms, "symptom", nil, "symptom (repeatable)")
	f.StringVar(&in.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("doctor")
	return cmd
}

func mappingsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a mapping (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd, client.RoleAdmin); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			if err := a.client().Mappings.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted mapping %s\n", args[0])
			return nil
		},
	}
}

func mappingsStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "status <id> <active|inactive|completed>",
		Short:     "Change a mapping's status (admin, mapped doctor)",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"active", "inactive", "completed"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd, client.RoleAdmin, client.RoleDoctor); err != nil {
				return err
			}
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			status := args[1]
			m, err := a.client().Mappings.Update(ctx, args[0], client.MappingUpdate{Status: &status})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mapping %s is now %s\n", m.ID, m.Status)
			return nil
		},
	}
}
