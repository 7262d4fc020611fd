package main

import (
	"bytes"
	"strings"
	"testing"
)

func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out.String()
}

func TestClassifyCommand(t *testing.T) {
	out := runCmd(t, "classify", "Good morning!", "The forecast says rain.")

	if !strings.Contains(out, "greeting") || !strings.Contains(out, "weather") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestSSMLCommand(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")

	out := runCmd(t, "ssml", "--voice", "en-US-AriaNeural", "Hello there. Be careful outside.")
	if !strings.Contains(out, `<voice name="en-US-AriaNeural">`) {
		t.Fatalf("missing voice element:\n%s", out)
	}
	if strings.Count(out, "<mstts:express-as") != 2 {
		t.Fatalf("expected two styled segments:\n%s", out)
	}

	plain := runCmd(t, "ssml", "--plain", "Hello there.")
	if strings.Contains(plain, "express-as") {
		t.Fatalf("expected plain document:\n%s", plain)
	}
}
