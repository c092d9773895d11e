package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jango-blockchained/schichtplan-sub009/internal/config"
	"github.com/jango-blockchained/schichtplan-sub009/internal/service"
)

// runToken mints an access token for local development and testing:
//
//	schichtplan token --subject emp-42
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "token subject, e.g. an employee id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		fs.Usage()
		return fmt.Errorf("--subject is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	token, err := service.NewAuthService(cfg.Auth).IssueToken(*subject)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Fprintln(os.Stdout, token)
	return nil
}
