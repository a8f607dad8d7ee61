// Package cli is the command tree behind the gantry binary.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/ewbankkit/gantry/client"
)

const defaultServerURL = "nats://127.0.0.1:4222"

// NewRootCommand assembles the gantry command tree.
func NewRootCommand() *cobra.Command {
	var serverURL string

	root := &cobra.Command{
		Use:           "gantry",
		Long:          "Client for the Gantry WebAssembly module registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", "",
		"registry broker URL (overrides stored credentials)")

	connect := func() (*client.Client, error) {
		creds, err := loadCredentials()
		if err != nil {
			return nil, err
		}
		url := defaultServerURL
		if len(creds.ServerURLs) > 0 {
			url = creds.ServerURLs[0]
		}
		if serverURL != "" {
			url = serverURL
		}
		var opts []client.Option
		if creds.UserJWT != "" && creds.UserSeed != "" {
			opts = append(opts, client.WithUserJWTAndSeed(creds.UserJWT, creds.UserSeed))
		}
		return client.New(url, opts...)
	}

	root.AddCommand(
		newGetCommand(connect),
		newPutCommand(connect),
		newDownloadCommand(connect),
		newUploadCommand(connect),
		newLoginCommand(),
		newLogoutCommand(),
	)
	return root
}
