// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crosstalk Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/crosstalkbot/crosstalk/internal/auth"
)

// NewMkpasswdCmd creates the mkpasswd subcommand.
func NewMkpasswdCmd() *cobra.Command {
	var (
		length int
		digits int
		upper  int
		lower  int
	)

	cmd := &cobra.Command{
		Use:   "mkpasswd",
		Short: "Generate a random password",
		Long: `Generate a random password with guaranteed minimum counts of digits,
uppercase, and lowercase characters. Ambiguous characters (o, O, 0 lookalikes
aside from the digit itself) are excluded from the letter sets.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := auth.GeneratePassword(length, digits, upper, lower)
			if err != nil {
				return err
			}
			cmd.Println(password)
			return nil
		},
	}

	cmd.Flags().IntVar(&length, "length", 32, "total password length")
	cmd.Flags().IntVar(&digits, "digits", 10, "minimum digit count")
	cmd.Flags().IntVar(&upper, "upper", 11, "minimum uppercase count")
	cmd.Flags().IntVar(&lower, "lower", 11, "minimum lowercase count")

	return cmd
}
