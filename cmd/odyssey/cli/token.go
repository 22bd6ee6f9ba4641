package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/auth"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/shared"
)

// TokenOptions configures the token issuing command.
type TokenOptions struct {
	Args   []string
	Secret string
	Issuer string
	Stdout io.Writer
	Stderr io.Writer
}

// IssueTokenCommand mints a bearer token for operators and integration tests.
// It returns the process exit code.
func IssueTokenCommand(opts TokenOptions) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(opts.Stderr)
	userID := fs.Int64("user", 0, "actor user id")
	name := fs.String("name", "", "actor display name")
	perms := fs.String("perms", strings.Join(shared.PharmacyScopes(), ","), "comma separated permissions")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	if err := fs.Parse(opts.Args); err != nil {
		return 2
	}
	if *userID <= 0 {
		fmt.Fprintln(opts.Stderr, "token: --user must be positive")
		return 2
	}
	if opts.Secret == "" {
		fmt.Fprintln(opts.Stderr, "token: signing secret not configured")
		return 1
	}

	actor := shared.Actor{ID: *userID, Name: *name, Permissions: splitPermissions(*perms)}
	raw, err := auth.NewTokenService(opts.Secret, opts.Issuer).Issue(actor, *ttl)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "token: %v\n", err)
		return 1
	}
	fmt.Fprintln(opts.Stdout, raw)
	return 0
}

func splitPermissions(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
