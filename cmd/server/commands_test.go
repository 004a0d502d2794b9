package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDurationCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"duration", "0:30", "30s", "1 min"})
	require.NoError(t, rootCmd.Execute())

	text := out.String()
	assert.Contains(t, text, " 1. 0:30")
	assert.Contains(t, text, "25%")
	assert.Contains(t, text, "50%")
	assert.Contains(t, text, "total: 2 min")
}

func TestExportCommandRequiresProjectID(t *testing.T) {
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"export"})
	assert.Error(t, rootCmd.Execute())
}
