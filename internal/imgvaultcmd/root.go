// Package imgvaultcmd builds the imgvault cobra command tree: one
// subcommand per Command Gateway command, sharing a persistent
// --vault-path flag, exactly the subcommand-per-operation shape
// NewDefaultVltCommand uses for its own domain.
package imgvaultcmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ZiyanaliSaiyed/GraphiVault/config"
	"github.com/ZiyanaliSaiyed/GraphiVault/gateway"
	"github.com/ZiyanaliSaiyed/GraphiVault/input"
	"github.com/ZiyanaliSaiyed/GraphiVault/sessiond"
)

const defaultVaultDirName = ".graphivault"

// commands lists every gateway command, in the order spec §6's table
// presents them.
var commands = []string{
	"initialize",
	"unlock",
	"lock",
	"get_vault_status",
	"vault_exists",
	"add_image",
	"get_image",
	"get_all_images",
	"search_images",
	"delete_image",
	"get_stats",
}

func defaultVaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultVaultDirName
	}

	return filepath.Join(home, defaultVaultDirName)
}

// resolveDefaultVaultPath prefers an operator config file's vault.path
// over the built-in ~/.graphivault default; a missing or unreadable
// config file is not fatal here, since --vault-path can always override
// it explicitly.
func resolveDefaultVaultPath() string {
	c, err := config.Load("")
	if err == nil && c.Vault.Path != "" {
		return c.Vault.Path
	}

	return defaultVaultPath()
}

// Execute parses args, runs the matching gateway command against
// stdin/stdout, and returns the process exit code.
func Execute(args []string) int {
	var (
		vaultPath string
		verbose   bool
		exitCode  = gateway.ExitFailure
	)

	root := &cobra.Command{
		Use:           "imgvault",
		Short:         "Command-line gateway for a local encrypted image vault",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&vaultPath, "vault-path", resolveDefaultVaultPath(), "vault directory path")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose diagnostics on stderr")

	for _, name := range commands {
		root.AddCommand(newGatewayCmd(name, &vaultPath, &verbose, &exitCode))
	}

	root.AddCommand(newConfigCmd())

	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return gateway.ExitFailure
	}

	return exitCode
}

func newGatewayCmd(name string, vaultPath *string, verbose *bool, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Run the %s gateway command", name),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if *verbose {
				log.Printf("running %s against %s", name, *vaultPath)
			}

			raw, err := readCommandPayload(name, os.Stdin)
			if err != nil {
				return err
			}

			var responseBuf bytes.Buffer

			*exitCode = gateway.Run(cmd.Context(), name, *vaultPath, bytes.NewReader(raw), &responseBuf)

			_, _ = os.Stdout.Write(responseBuf.Bytes())

			if *exitCode == gateway.ExitSuccess {
				mirrorToSessionDaemon(name, *vaultPath, raw, *verbose)

				if *verbose && name == "get_stats" {
					printHumanStats(responseBuf.Bytes())
				}
			}

			return nil
		},
	}
}

// printHumanStats prints a human-readable byte count alongside
// get_stats' raw envelope, to stderr only — the JSON envelope on stdout
// is the contract a scripted caller parses, so this diagnostic never
// touches it.
func printHumanStats(envelope []byte) {
	var resp struct {
		Statistics struct {
			ImageCount     int   `json:"image_count"`
			ThumbnailCount int   `json:"thumbnail_count"`
			TotalBytes     int64 `json:"total_bytes"`
		} `json:"statistics"`
	}

	if err := json.Unmarshal(envelope, &resp); err != nil {
		return
	}

	fmt.Fprintf(os.Stderr, "%d images, %d thumbnails, %s total\n",
		resp.Statistics.ImageCount, resp.Statistics.ThumbnailCount, humanize.Bytes(uint64(resp.Statistics.TotalBytes)))
}

// minPasswordLength is the minimum length PromptNewPassword enforces on
// an interactive initialize. A piped password payload is not length
// checked; core.Initialize only rejects an empty password.
const minPasswordLength = 8

// readCommandPayload returns the raw JSON payload for command. For
// initialize/unlock run against an interactive terminal (no piped
// payload), it prompts for the password securely instead of requiring
// the caller to have already written JSON to stdin.
func readCommandPayload(command string, in *os.File) ([]byte, error) {
	if (command == "initialize" || command == "unlock") && term.IsTerminal(int(in.Fd())) {
		return promptPasswordPayload(command, in)
	}

	return io.ReadAll(in)
}

func promptPasswordPayload(command string, in *os.File) ([]byte, error) {
	fd := int(in.Fd())

	var (
		password []byte
		err      error
	)

	if command == "initialize" {
		password, err = input.PromptNewPassword(os.Stderr, fd, minPasswordLength)
	} else {
		password, err = input.PromptPassword(os.Stderr, fd)
	}

	if err != nil {
		return nil, err
	}

	defer func() {
		for i := range password {
			password[i] = 0
		}
	}()

	return json.Marshal(map[string]string{"password": string(password)})
}

// mirrorToSessionDaemon best-effort notifies a running session daemon of
// an unlock/lock the gateway just performed, so a daemon-aware client
// started later sees the same state. A daemon that isn't running, or a
// socket that fails its ownership checks, is silently skipped: the
// daemon is a convenience cache, never a requirement for imgvault to
// function standalone.
func mirrorToSessionDaemon(command, vaultPath string, rawPayload []byte, verbose bool) {
	if command != "unlock" && command != "lock" {
		return
	}

	client, err := sessiond.Dial(sessiond.DefaultSocketPath())
	if err != nil {
		if verbose {
			log.Printf("session daemon unavailable, skipping mirror: %v", err)
		}

		return
	}
	defer client.Close()

	if command == "lock" {
		_, _ = client.Lock(vaultPath)
		return
	}

	var payload struct {
		Password string `json:"password"`
	}

	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return
	}

	_, _ = client.Unlock(vaultPath, []byte(payload.Password))
}

// newConfigCmd builds the "config" command group: "generate" prints a
// commented default operator config, "validate" loads and checks one,
// the same two-subcommand shape as the teacher's own config command.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or scaffold the operator configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Print a default config file",
		RunE: func(_ *cobra.Command, _ []string) error {
			out, err := config.Generate()
			if err != nil {
				return err
			}

			_, err = os.Stdout.Write(out)

			return err
		},
	})

	var configPath string

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check config validity",
		RunE: func(_ *cobra.Command, _ []string) error {
			c, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if c.Path() == "" {
				fmt.Println("no config file found; nothing to validate")
				return nil
			}

			fmt.Printf("%s: OK\n", c.Path())

			return nil
		},
	}

	validateCmd.Flags().StringVarP(&configPath, "file", "f", "", "path to the configuration file")
	cmd.AddCommand(validateCmd)

	return cmd
}
