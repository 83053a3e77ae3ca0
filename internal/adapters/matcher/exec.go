package matcher

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
)

// ExecName is the registry name of the external-program matcher.
const ExecName = "exec"

// Params consumed by the exec matcher itself; everything else is exported
// to the child as MATCHER_<KEY>.
const (
	execCommandParam = "command"
	execArgsParam    = "args"
	envPrefix        = "MATCHER_"
)

func init() { //nolint:gochecknoinits // built-in registration
	if err := Register(ExecName, NewExec); err != nil {
		panic(err)
	}
}

// Exec runs an external program per pair as
//
//	<command> [args...] <img0> <img1>
//
// and reads the inlier count from the last non-empty line of its stdout.
type Exec struct {
	command string
	args    []string
	env     []string
}

// NewExec builds an Exec matcher. "command" is required; "args" is an
// optional list of leading arguments.
func NewExec(params Params) (Matcher, error) {
	command, _ := params[execCommandParam].(string)
	if command == "" {
		return nil, fmt.Errorf("%w: exec matcher needs a %q string", ErrInvalidParams, execCommandParam)
	}

	var args []string
	if raw, ok := params[execArgsParam]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q must be a list", ErrInvalidParams, execArgsParam)
		}
		for _, a := range list {
			args = append(args, fmt.Sprint(a))
		}
	}

	return &Exec{command: command, args: args, env: paramEnv(params)}, nil
}

// Match runs the program for one pair.
func (e *Exec) Match(ctx context.Context, img0, img1 string) (Result, error) {
	argv := append(append([]string{}, e.args...), img0, img1)
	cmd := exec.CommandContext(ctx, e.command, argv...) //nolint:gosec // command comes from the operator's config
	cmd.Env = append(os.Environ(), e.env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		return Result{}, fmt.Errorf("%w: %s %s %s: %w (%s)", ErrMatchFailed, e.command, img0, img1, err, msg)
	}

	n, err := parseInliers(stdout.String())
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrMatchFailed, e.command, err)
	}
	return Result{NumInliers: n}, nil
}

func parseInliers(out string) (int, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if last == "" {
		return 0, fmt.Errorf("no output")
	}
	n, err := strconv.Atoi(last)
	if err != nil {
		return 0, fmt.Errorf("last line %q is not an inlier count", last)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative inlier count %d", n)
	}
	return n, nil
}

func paramEnv(params Params) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == execCommandParam || k == execArgsParam {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, envPrefix+strings.ToUpper(k)+"="+fmt.Sprint(params[k]))
	}
	return env
}
