package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandRegistration(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"migrate", "escalate", "wave", "evaluate", "status", "lock", "serve"} {
		assert.True(t, names[want], "command %s not registered", want)
	}
}

func TestLockSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range lockCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["status"])
	assert.True(t, names["force-release"])
}
