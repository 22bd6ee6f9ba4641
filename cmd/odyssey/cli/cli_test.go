package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/auth"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/shared"
)

func TestParseJobArgs(t *testing.T) {
	args, err := ParseJobArgs([]string{"po_id=77", " grn_id = 5 "})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"po_id": "77", "grn_id": "5"}, args)

	_, err = ParseJobArgs([]string{"po_id"})
	require.Error(t, err)
	_, err = ParseJobArgs([]string{"=5"})
	require.Error(t, err)
}

func TestWriteStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, QueueStats{Queue: "default", Pending: 3, Retry: 1}))
	require.Equal(t, "queue=default pending=3 active=0 scheduled=0 retry=1 archived=0\n", buf.String())
}

func TestIssueTokenCommandRoundTrip(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := IssueTokenCommand(TokenOptions{
		Args:   []string{"--user", "7", "--name", "Apoteker", "--perms", shared.PermGRNView + ", " + shared.PermGRNApprove},
		Secret: secret,
		Issuer: "odyssey-pharmacy",
		Stdout: stdout,
		Stderr: stderr,
	})
	require.Zero(t, code, stderr.String())

	actor, err := auth.NewTokenService(secret, "odyssey-pharmacy").Verify(strings.TrimSpace(stdout.String()))
	require.NoError(t, err)
	require.EqualValues(t, 7, actor.ID)
	require.Equal(t, "Apoteker", actor.Name)
	require.Equal(t, []string{shared.PermGRNView, shared.PermGRNApprove}, actor.Permissions)
}

func TestIssueTokenCommandRejectsMissingUser(t *testing.T) {
	stderr := new(bytes.Buffer)
	code := IssueTokenCommand(TokenOptions{Secret: "s", Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 2, code)
	require.Contains(t, stderr.String(), "--user")
}
