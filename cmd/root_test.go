package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCommand(parent *cobra.Command, name string) *cobra.Command {
	for _, c := range parent.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "lead-qualifier", rootCmd.Use)
	assert.NotNil(t, rootCmd.PersistentPreRunE)

	for _, name := range []string{
		"run", "resume", "batch", "serve", "import", "leads", "dlq", "crm-sync", "migrate",
	} {
		assert.NotNil(t, findCommand(rootCmd, name), "missing subcommand %s", name)
	}
}

func TestSubcommands(t *testing.T) {
	leads := findCommand(rootCmd, "leads")
	require.NotNil(t, leads)
	for _, name := range []string{"list", "show", "review-queue", "analytics", "delete"} {
		assert.NotNil(t, findCommand(leads, name), "missing leads %s", name)
	}

	dlq := findCommand(rootCmd, "dlq")
	require.NotNil(t, dlq)
	assert.NotNil(t, findCommand(dlq, "list"))
	assert.NotNil(t, findCommand(dlq, "retry"))
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		cmd   string
		flags []string
	}{
		{"run", []string{"lead-id", "company", "website", "contact-name", "email", "title", "sender"}},
		{"resume", []string{"action", "feedback", "subject", "body"}},
		{"batch", []string{"limit"}},
		{"serve", []string{"port"}},
		{"import", []string{"csv", "xlsx", "notion"}},
		{"crm-sync", []string{"limit"}},
		{"migrate", []string{"down", "version"}},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			c := findCommand(rootCmd, tt.cmd)
			require.NotNil(t, c)
			for _, f := range tt.flags {
				assert.NotNil(t, c.Flags().Lookup(f), "missing --%s", f)
			}
		})
	}
}
