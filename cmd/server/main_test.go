package main

import (
	"testing"
	"time"
)

func TestRetryBackoff(t *testing.T) {
	cases := []struct {
		configured time.Duration
		want       time.Duration
	}{
		{0, -1},
		{25 * time.Millisecond, 25 * time.Millisecond},
		{time.Second, time.Second},
	}
	for _, c := range cases {
		if got := retryBackoff(c.configured); got != c.want {
			t.Fatalf("retryBackoff(%s) = %s, want %s", c.configured, got, c.want)
		}
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %q not registered: %v", name, err)
		}
	}
	if root.Flags().Lookup("skip-migrate") == nil {
		t.Fatal("root command should accept --skip-migrate")
	}
}
