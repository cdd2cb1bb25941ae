package main

import (
	"fmt"
	"ideasystemx-go/pkg/token"

	"github.com/spf13/cobra"
)

func newTokenCmd(c *cli) *cobra.Command {
	var client string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the HTTP API (when jwt.enabled is set)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.JWT.Secret == "" {
				return fmt.Errorf("jwt.secret is not configured")
			}
			m := token.NewJWTManager(c.cfg.JWT.Secret, c.cfg.JWT.AccessTokenExpireHours)
			tok, err := m.GenerateToken(client)
			if err != nil {
				return err
			}
			return c.print(cmd, map[string]string{"token": tok}, func() {
				fmt.Fprintln(cmd.OutOrStdout(), tok)
			})
		},
	}
	cmd.Flags().StringVar(&client, "client", "ideactl", "Name recorded in the token")
	return cmd
}
