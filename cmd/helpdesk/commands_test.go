package main

import (
	"strings"
	"testing"
)

func TestColorize(t *testing.T) {
	noColor = false
	t.Cleanup(func() { noColor = false })

	got := colorize(colorGreen, "ok")
	if !strings.HasPrefix(got, colorGreen) || !strings.HasSuffix(got, colorReset) {
		t.Errorf("colorize = %q, want wrapped in color codes", got)
	}

	noColor = true
	if got := colorize(colorGreen, "ok"); got != "ok" {
		t.Errorf("colorize with no-color = %q, want plain text", got)
	}
}

func TestRootCommandWiring(t *testing.T) {
	want := map[string]bool{"serve": false, "sync-faq": false, "status": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}
