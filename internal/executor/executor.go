// Package executor spawns local processes on behalf of tool handlers: shell
// command lines, registered programs and Vivado batch scripts. Every run is
// bounded by a timeout and reports its outcome as a Result rather than an
// error, so the AI always sees what happened.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	ShellTimeout   = 120 * time.Second
	ProgramTimeout = 300 * time.Second
	VivadoTimeout  = 3600 * time.Second

	maxOutputBytes = 64 * 1024
	// exit code reported for a run killed by its timeout
	timeoutExitCode = 124
)

// ErrProgramNotRegistered is returned when a program name has no configured path.
var ErrProgramNotRegistered = errors.New("program not registered")

// Result is the outcome of one process run.
type Result struct {
	Success    bool
	Output     string
	Error      string
	ReturnCode int
	Data       map[string]any
}

// Payload renders r as a tool result object.
func (r Result) Payload() map[string]any {
	data := r.Data
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"success":     r.Success,
		"output":      r.Output,
		"error":       r.Error,
		"return_code": r.ReturnCode,
		"data":        data,
	}
}

func failed(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...), ReturnCode: -1}
}

// Options configures an Executor.
type Options struct {
	// Programs maps a program name to its executable path.
	Programs   map[string]string
	WorkingDir string
	TempDir    string

	ShellTimeout   time.Duration
	ProgramTimeout time.Duration
	VivadoTimeout  time.Duration
}

// Executor runs processes. It is safe for concurrent use.
type Executor struct {
	programs   map[string]string
	workingDir string
	tempDir    string

	shellTimeout   time.Duration
	programTimeout time.Duration
	vivadoTimeout  time.Duration
}

// New creates an Executor and makes sure its working and temp directories exist.
func New(opts Options) *Executor {
	e := &Executor{
		programs:       make(map[string]string, len(opts.Programs)),
		workingDir:     ExpandHome(opts.WorkingDir),
		tempDir:        ExpandHome(opts.TempDir),
		shellTimeout:   orDefault(opts.ShellTimeout, ShellTimeout),
		programTimeout: orDefault(opts.ProgramTimeout, ProgramTimeout),
		vivadoTimeout:  orDefault(opts.VivadoTimeout, VivadoTimeout),
	}
	for name, path := range opts.Programs {
		if path == "" {
			continue
		}
		e.programs[name] = ExpandHome(path)
		log.Debug().Str("program", name).Str("path", path).Msg("registered program")
	}
	if e.tempDir == "" {
		e.tempDir = os.TempDir()
	}
	for _, dir := range []string{e.workingDir, e.tempDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("could not create directory")
		}
	}
	return e
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// WorkingDir is the default directory for runs without an explicit one.
func (e *Executor) WorkingDir() string { return e.workingDir }

// TempDir holds generated scripts.
func (e *Executor) TempDir() string { return e.tempDir }

// Programs returns the registered program names, sorted.
func (e *Executor) Programs() []string {
	names := make([]string, 0, len(e.programs))
	for name := range e.programs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ProgramPath returns the configured path of a registered program.
func (e *Executor) ProgramPath(name string) (string, bool) {
	p, ok := e.programs[name]
	return p, ok
}

// Shell runs command through the platform shell.
func (e *Executor) Shell(ctx context.Context, command, dir string) Result {
	program, args := shellInvocation(runtime.GOOS)
	args = append(args, command)
	log.Info().Str("command", command).Msg("executing shell command")
	return e.run(ctx, e.shellTimeout, e.dir(dir), program, args...)
}

// Program runs a registered program. When wait is false the process is
// started in the background and the call returns immediately.
func (e *Executor) Program(ctx context.Context, name string, args []string, dir string, wait bool) Result {
	path, ok := e.programs[name]
	if !ok {
		return failed("%v: %q (available: %s)", ErrProgramNotRegistered, name, strings.Join(e.Programs(), ", "))
	}
	resolved, err := resolveExecutable(path)
	if err != nil {
		return failed("program path does not exist: %s", path)
	}
	log.Info().Str("program", name).Strs("args", args).Msg("executing program")

	if !wait {
		cmd := exec.Command(resolved, args...)
		cmd.Dir = e.dir(dir)
		if err := cmd.Start(); err != nil {
			return failed("start %s: %v", name, err)
		}
		go cmd.Wait()
		return Result{Success: true, Output: fmt.Sprintf("program started in background: %s (pid %d)", name, cmd.Process.Pid)}
	}
	return e.run(ctx, e.programTimeout, e.dir(dir), resolved, args...)
}

// VivadoTCL writes cmds to a script in the temp dir and runs it with
// `vivado -mode batch -source`.
func (e *Executor) VivadoTCL(ctx context.Context, cmds []string) Result {
	vivado, ok := e.programs["vivado"]
	if !ok {
		return failed("vivado is not configured; set programs.vivado.path or VIVADO_PATH")
	}
	script := strings.Join(cmds, "\n") + "\n"

	f, err := os.CreateTemp(e.tempDir, "arixa_*.tcl")
	if err != nil {
		return failed("create tcl script: %v", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return failed("write tcl script: %v", err)
	}
	if err := f.Close(); err != nil {
		return failed("write tcl script: %v", err)
	}

	log.Info().Str("script", f.Name()).Int("commands", len(cmds)).Msg("executing vivado tcl")
	log.Debug().Msg(script)

	res := e.run(ctx, e.vivadoTimeout, e.workingDir, vivado, "-mode", "batch", "-source", f.Name())
	if res.Data == nil {
		res.Data = map[string]any{}
	}
	res.Data["tcl_script"] = script
	return res
}

func (e *Executor) dir(dir string) string {
	if dir == "" {
		return e.workingDir
	}
	return ExpandHome(dir)
}

func (e *Executor) run(ctx context.Context, timeout time.Duration, dir, program string, args ...string) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// grandchildren can hold the pipes open after a kill
	cmd.WaitDelay = 2 * time.Second

	err := cmd.Run()
	res := Result{
		Success: err == nil,
		Output:  truncateOutput(stdout.String(), maxOutputBytes),
		Error:   truncateOutput(stderr.String(), maxOutputBytes),
	}
	if err == nil {
		return res
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.ReturnCode = timeoutExitCode
		res.Error = strings.TrimSpace(res.Error + fmt.Sprintf("\ncommand timed out after %s", timeout))
	case errors.As(err, &exitErr):
		res.ReturnCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
		res.ReturnCode = -1
		res.Error = fmt.Sprintf("executable not found: %s", program)
	default:
		res.ReturnCode = -1
		res.Error = strings.TrimSpace(res.Error + "\n" + err.Error())
	}
	return res
}

func shellInvocation(goos string) (string, []string) {
	if goos == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}

func resolveExecutable(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return exec.LookPath(path)
}

func truncateOutput(raw string, maxBytes int) string {
	if maxBytes <= 0 || len(raw) <= maxBytes {
		return raw
	}
	return raw[:maxBytes] + "\n... (output truncated)"
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	if len(path) > 1 && path[1] != '/' && path[1] != filepath.Separator {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
