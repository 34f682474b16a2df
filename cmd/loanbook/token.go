package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/xraph/loanbook/api"
)

type tokenCmd struct {
	owner     string
	jwtSecret string
	ttl       time.Duration
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "mint a bearer token for an owner" }
func (*tokenCmd) Usage() string {
	return `loanbook token -owner <id> [-ttl <duration>] [-jwt-secret <secret>]

  Prints an HS256 token whose subject is the given owner. Intended for
  local development against "loanbook serve".
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "Owner id to put in the sub claim.")
	f.StringVar(&c.jwtSecret, "jwt-secret", os.Getenv("LOANBOOK_JWT_SECRET"), "HS256 token secret (LOANBOOK_JWT_SECRET).")
	f.DurationVar(&c.ttl, "ttl", 24*time.Hour, "Token lifetime; 0 for no expiry.")
}

func (c *tokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.owner == "" || c.jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "both -owner and a JWT secret are required")
		return subcommands.ExitUsageError
	}

	token, err := api.NewAuthenticator([]byte(c.jwtSecret)).IssueToken(c.owner, c.ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println(token)
	return subcommands.ExitSuccess
}
