package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/nats-io/nkeys"
	"github.com/spf13/cobra"
)

func newLoginCommand() *cobra.Command {
	var server, jwtFile, seedFile string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Persist registry credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if server == "" {
				return fmt.Errorf("--server is required")
			}
			creds := Credentials{ServerURLs: []string{server}}

			if (jwtFile == "") != (seedFile == "") {
				return fmt.Errorf("--jwt and --seed must be given together")
			}
			if jwtFile != "" {
				jwt, err := os.ReadFile(jwtFile)
				if err != nil {
					return fmt.Errorf("read jwt file: %w", err)
				}
				seed, err := os.ReadFile(seedFile)
				if err != nil {
					return fmt.Errorf("read seed file: %w", err)
				}
				creds.UserJWT = strings.TrimSpace(string(jwt))
				creds.UserSeed = strings.TrimSpace(string(seed))
				// Refuse to store a seed that cannot authenticate.
				if _, err := nkeys.FromSeed([]byte(creds.UserSeed)); err != nil {
					return fmt.Errorf("invalid nkey seed: %w", err)
				}
			}

			if err := saveCredentials(creds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in to %s\n", server)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "registry broker URL")
	cmd.Flags().StringVar(&jwtFile, "jwt", "", "file holding the user JWT")
	cmd.Flags().StringVar(&seedFile, "seed", "", "file holding the user nkey seed")
	return cmd
}

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove persisted registry credentials",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := removeCredentials(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}
