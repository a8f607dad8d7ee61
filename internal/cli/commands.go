package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ewbankkit/gantry/client"
	"github.com/ewbankkit/gantry/protocol"
)

type connectFunc func() (*client.Client, error)

func queryTypeForKind(kind string) (protocol.QueryType, error) {
	switch kind {
	case "actors":
		return protocol.QueryTypeActor, nil
	case "operators":
		return protocol.QueryTypeOperator, nil
	case "accounts":
		return protocol.QueryTypeAccount, nil
	}
	return "", fmt.Errorf("unknown kind %q (want actors, operators, or accounts)", kind)
}

func newGetCommand(connect connectFunc) *cobra.Command {
	var kind, issuer string

	cmd := &cobra.Command{
		Use:   "get",
		Short: "List registered subjects of one kind",
		RunE: func(cmd *cobra.Command, _ []string) error {
			queryType, err := queryTypeForKind(kind)
			if err != nil {
				return err
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			results, err := c.Query(queryType, issuer)
			if err != nil {
				return err
			}
			for _, r := range results.Results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", r.Subject, r.Issuer, r.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "actors", "actors, operators, or accounts")
	cmd.Flags().StringVar(&issuer, "issuer", "", "only subjects issued by this key")
	return cmd
}

func newPutCommand(connect connectFunc) *cobra.Command {
	var raw, tokenFile string

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Submit a signed token to the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if raw == "" && tokenFile == "" {
				return fmt.Errorf("one of --token or --token-file is required")
			}
			if raw == "" {
				data, err := os.ReadFile(tokenFile)
				if err != nil {
					return fmt.Errorf("read token file: %w", err)
				}
				raw = strings.TrimSpace(string(data))
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			result, err := c.PutToken(raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%s) issued by %s\n",
				result.Subject, result.Name, result.Issuer)
			return nil
		},
	}
	cmd.Flags().StringVar(&raw, "token", "", "raw signed token")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "file holding the raw signed token")
	return cmd
}

func newDownloadCommand(connect connectFunc) *cobra.Command {
	var actor, outputDir string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download an actor module",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if actor == "" {
				return fmt.Errorf("--actor is required")
			}
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			path := filepath.Join(outputDir, actor+".wasm")
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()

			err = c.Download(cmd.Context(), actor, f, func(rc client.ReceivedChunk) {
				fmt.Fprintf(cmd.OutOrStdout(), "chunk %d: %d/%d bytes\n",
					rc.SequenceNo, rc.ReceivedBytes, rc.TotalBytes)
			})
			if err != nil {
				os.Remove(path)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor public key")
	cmd.Flags().StringVar(&outputDir, "output", ".", "directory to write the module into")
	return cmd
}

func newUploadCommand(connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <module.wasm>",
		Short: "Upload a signed actor module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			actor, err := c.UploadModule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s as %s\n", args[0], actor)
			return nil
		},
	}
	return cmd
}
