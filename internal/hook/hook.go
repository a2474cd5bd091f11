// Package hook runs the user's post-update command.
package hook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mattn/go-shellwords"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNothingToExecute = errors.New("nothing to execute")
	ErrInvalidCommand   = errors.New("invalid hook command")
	ErrInvalidEnv       = errors.New("invalid environment entry, expected KEY=VALUE")
)

// Runner executes hook commands.
type Runner struct {
	// commandContext allows mocking os/exec for testing hooks.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewRunner creates a Runner. A nil commandContext uses exec.CommandContext.
func NewRunner(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *Runner {
	if commandContext == nil {
		commandContext = exec.CommandContext
	}
	return &Runner{commandContext: commandContext}
}

// Split breaks command into arguments using shell quoting rules.
// Variables are not expanded.
func Split(command string) ([]string, error) {
	args, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidCommand, command, err)
	}
	return args, nil
}

// ValidateEnv checks every entry has the form KEY=VALUE with a non-empty key.
func ValidateEnv(env []string) error {
	for _, kv := range env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			return fmt.Errorf("%w: %q", ErrInvalidEnv, kv)
		}
	}
	return nil
}

// ReadEnvFile loads a dotenv file as KEY=VALUE entries sorted by key.
func ReadEnvFile(path string) ([]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrInvalidEnv, path, err)
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+values[k])
	}
	return env, nil
}

// Run executes command with the process environment plus env overrides.
// The daemon's own environment is not modified.
func (r *Runner) Run(ctx context.Context, command string, env []string) error {
	args, err := Split(command)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return ErrNothingToExecute
	}
	if err := ValidateEnv(env); err != nil {
		return err
	}

	log.WithField("command", command).Info("Running update hook")

	cmd := r.createCommand(ctx, args)
	cmd.Env = mergeEnv(os.Environ(), env)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.Canceled {
			return context.Canceled
		}
		return fmt.Errorf("hook command '%s' failed: %w", command, err)
	}
	return nil
}

// mergeEnv overlays overrides onto base. Later entries win; base order is kept.
func mergeEnv(base, overrides []string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base)+len(overrides))
	for _, list := range [][]string{base, overrides} {
		for _, kv := range list {
			k, _, _ := strings.Cut(kv, "=")
			if i, ok := index[k]; ok {
				merged[i] = kv
				continue
			}
			index[k] = len(merged)
			merged = append(merged, kv)
		}
	}
	return merged
}
