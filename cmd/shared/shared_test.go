package shared

import (
	"strings"
	"testing"

	"github.com/urfave/cli/v3"
)

func TestGetBaseDescription(t *testing.T) {
	t.Parallel()

	desc := GetBaseDescription()
	if desc == "" {
		t.Error("GetBaseDescription() should not return empty string")
	}
	if !strings.Contains(desc, "ephemeral") {
		t.Error("description should mention the ephemeral port fallback")
	}
}

func TestGetArgsUsage(t *testing.T) {
	t.Parallel()

	if usage := GetArgsUsage(); !strings.Contains(usage, "port") {
		t.Errorf("GetArgsUsage() = %q, should mention port", usage)
	}
}

func flagNames(flags []cli.Flag) map[string]bool {
	names := make(map[string]bool)
	for _, flag := range flags {
		if n := flag.Names(); len(n) > 0 {
			names[n[0]] = true
		}
	}
	return names
}

func TestGetCommonFlags(t *testing.T) {
	t.Parallel()

	names := flagNames(GetCommonFlags())
	for _, want := range []string{VerboseFlag, DebugFlag, TimeoutFlag} {
		if !names[want] {
			t.Errorf("expected flag %q not found", want)
		}
	}
}

func TestGetServeFlags(t *testing.T) {
	t.Parallel()

	names := flagNames(GetServeFlags())
	for _, want := range []string{PollFlag, MaxClientsFlag, MuxFlag} {
		if !names[want] {
			t.Errorf("expected flag %q not found", want)
		}
	}
}

func TestFlags_NoDuplicateAliases(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for _, flag := range append(GetCommonFlags(), GetServeFlags()...) {
		for _, n := range flag.Names() {
			if seen[n] {
				t.Errorf("flag name or alias %q used twice", n)
			}
			seen[n] = true
		}
	}
}
