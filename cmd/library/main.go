package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"biblioteca/internal/app"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "library",
		Short:        "Library catalog and loans service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	root.AddCommand(newServeCmd(), newBootstrapCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	application, err := app.New()
	if err != nil {
		return err
	}
	return application.Run()
}

func newBootstrapCmd() *cobra.Command {
	var name, password string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the super administrator if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")
			}
			if password == "" {
				var err error
				if password, err = readPassword("Administrator password: "); err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
			}

			application, err := app.New()
			if err != nil {
				return err
			}
			defer application.Shutdown()

			created, err := application.BootstrapAdmin(context.Background(), name, password)
			if err != nil {
				return err
			}
			if created {
				log.Println("Super administrator created")
			} else {
				log.Println("Super administrator already exists")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name of the administrator")
	cmd.Flags().StringVar(&password, "password", "", "password (defaults to BOOTSTRAP_ADMIN_PASSWORD or a prompt)")
	return cmd
}

// readPassword reads a password from the terminal without echoing it
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}
