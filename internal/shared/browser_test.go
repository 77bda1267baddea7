package shared

import (
	"errors"
	"os/exec"
	"testing"
)

func TestOpenBrowser(t *testing.T) {
	origRuntime, origStart := getRuntime, startCmd
	t.Cleanup(func() { getRuntime, startCmd = origRuntime, origStart })

	var started []string
	startCmd = func(c *exec.Cmd) error {
		started = c.Args
		return nil
	}

	tt := []struct {
		runtime string
		want    string
	}{
		{runtime: "darwin", want: "open"},
		{runtime: "linux", want: "xdg-open"},
		{runtime: "windows", want: "rundll32"},
	}
	for _, tc := range tt {
		t.Run(tc.runtime, func(t *testing.T) {
			getRuntime = func() string { return tc.runtime }
			if err := OpenBrowser("https://auth.example.com/?rd=x"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(started) == 0 || started[0] != tc.want {
				t.Errorf("started %v, want %s", started, tc.want)
			}
			if started[len(started)-1] != "https://auth.example.com/?rd=x" {
				t.Errorf("unexpected address %q", started[len(started)-1])
			}
		})
	}

	t.Run("unsupported platform", func(t *testing.T) {
		getRuntime = func() string { return "plan9" }
		if err := OpenBrowser("https://auth.example.com"); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})

	t.Run("non web address", func(t *testing.T) {
		getRuntime = func() string { return "linux" }
		for _, addr := range []string{"file:///etc/passwd", "auth.example.com", ""} {
			if err := OpenBrowser(addr); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("OpenBrowser(%q) = %v, want ErrInvalidArgument", addr, err)
			}
		}
	})
}
