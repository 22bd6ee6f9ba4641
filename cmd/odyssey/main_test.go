package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/app"
	_ "github.com/odyssey-erp/odyssey-pharmacy/testing"
)

func TestMainSkipsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	main()
}

func TestRunCommandRejectsUnknown(t *testing.T) {
	require.Equal(t, 2, runCommand(&app.Config{}, "migrate", nil))
	require.Equal(t, 2, runJobsCommand(&app.Config{RedisAddr: "127.0.0.1:0"}, nil))
}
