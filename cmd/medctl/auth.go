package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/geocoder89/medportal/pkg/client"
	"github.com/spf13/cobra"
)

// readSecret takes the flag value, or the first line of stdin when the flag is empty.
func readSecret(cmd *cobra.Command, flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func loginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd, password, "Password: ")
			if err != nil {
				return err
			}

			ctx, cancel := a.ctx(cmd)
			defer cancel()

			p, err := a.session.Login(ctx, email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", p.Email, p.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget the stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.ctx(cmd)
			defer cancel()

			if err := a.session.Logout(ctx); err != nil {
				// local tokens are gone either way
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: server logout failed:", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user and their profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd); err != nil {
				return err
			}
			p := a.session.CurrentUser()
			out := cmd.OutOrStdout()

			rows := [][]string{
				{"id", p.ID},
				{"email", p.Email},
				{"name", p.FullName},
				{"role", string(p.Role)},
				{"active", yesNo(p.IsActive)},
			}
			if p.Patient != nil {
				rows = append(rows,
					[]string{"patient id", p.Patient.ID},
					[]string{"age", fmt.Sprint(p.Patient.Age)},
					[]string{"gender", p.Patient.Gender},
				)
			}
			if p.Doctor != nil {
				rows = append(rows,
					[]string{"doctor id", p.Doctor.ID},
					[]string{"specializations", strings.Join(p.Doctor.Specializations, ", ")},
					[]string{"approved", yesNo(p.Doctor.IsApproved)},
				)
			}
			printTable(out, []string{"FIELD", "VALUE"}, rows)
			return nil
		},
	}
}

func registerCmd(a *app) *cobra.Command {
	var (
		in       client.RegisterInput
		role     string
		age      int
		years    int
		password string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a patient or doctor account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd, password, "Password: ")
			if err != nil {
				return err
			}
			in.Password, in.Password2 = pw, pw
			in.Role = client.Role(role)

			switch in.Role {
			case client.RolePatient:
				in.Age = &age
			case client.RoleDoctor:
				in.YearsOfExperience = &years
			default:
				return fmt.Errorf("--role must be patient or doctor")
			}

			ctx, cancel := a.ctx(cmd)
			defer cancel()

			p, err := a.session.Register(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s as %s\n", p.Email, p.Role)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "account email")
	f.StringVar(&password, "password", "", "password (read from stdin when omitted)")
	f.StringVar(&in.FullName, "name", "", "full name")
	f.StringVar(&role, "role", "patient", "patient or doctor")
	f.StringVar(&in.ContactNumber, "contact", "", "contact number (digits)")
	f.IntVar(&age, "age", 0, "patient age")
	f.StringVar(&in.Gender, "gender", "", "patient gender: male, female or other")
	f.StringVar(&in.Address, "address", "", "patient address")
	f.StringSliceVar(&in.Specializations, "specialization", nil, "doctor specialization (repeatable)")
	f.StringVar(&in.LicenseNumber, "license", "", "doctor license number")
	f.IntVar(&years, "years", 0, "doctor years of experience")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func passwdCmd(a *app) *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change your password; every session is signed out",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.restore(cmd); err != nil {
				return err
			}
			cur, err := readSecret(cmd, current, "Current password: ")
			if err != nil {
				return err
			}
			if next == "" {
				return fmt.Errorf("--new is required")
			}

			ctx, cancel := a.ctx(cmd)
			defer cancel()

			if err := a.session.ChangePassword(ctx, cur, next); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed; log in again with `medctl login`")
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "current password (read from stdin when omitted)")
	cmd.Flags().StringVar(&next, "new", "", "new password")
	return cmd
}
