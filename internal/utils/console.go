package utils

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Console runs external commands. Tests swap it for a recording fake.
type Console interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecConsole runs commands on the host.
type ExecConsole struct{}

func (ExecConsole) Run(ctx context.Context, name string, args ...string) (string, error) {
	c := exec.CommandContext(ctx, name, args...)
	Log.Debug().Str("cmd", name).Str("args", strings.Join(args, " ")).Msg("Running command")
	out, err := c.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("failed to run %s: %w", name, err)
	}
	return string(out), nil
}
