package tools

import (
	"context"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/executor"
	"github.com/arixa/arixa/internal/security"
	"github.com/arixa/arixa/internal/session"
)

func systemTools(exec *executor.Executor, filter *security.CommandFilter) []catalog.Descriptor {
	return []catalog.Descriptor{
		{
			Name:        "run_program",
			Description: "Run a program registered in the configuration",
			Category:    catalog.CategorySystem,
			Params: []catalog.Param{
				{Name: "program_name", Type: catalog.TypeString, Description: "Registered program name", Required: true},
				{Name: "arguments", Type: catalog.TypeArray, Description: "Command line arguments"},
				{Name: "working_dir", Type: catalog.TypeString, Description: "Working directory"},
				{Name: "wait", Type: catalog.TypeBoolean, Description: "Wait for the program to exit", Default: true},
			},
			Handler: catalog.Async(func(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
				name, err := requireString(args, "program_name")
				if err != nil {
					return nil, err
				}
				dir := optString(args, "working_dir")
				if dir == "" {
					dir = sess.WorkingDir()
				}
				wait := true
				if _, ok := args["wait"]; ok {
					wait = optBool(args, "wait")
				}
				return exec.Program(ctx, name, optStrings(args, "arguments"), dir, wait).Payload(), nil
			}),
		},
		{
			Name:        "run_command",
			Description: "Run a shell command line. Destructive commands are refused.",
			Category:    catalog.CategorySystem,
			Params: []catalog.Param{
				{Name: "command", Type: catalog.TypeString, Description: "Command line", Required: true},
				{Name: "working_dir", Type: catalog.TypeString, Description: "Working directory"},
			},
			Handler: catalog.Async(func(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
				command, err := requireString(args, "command")
				if err != nil {
					return nil, err
				}
				if ok, reason := filter.IsSafe(command); !ok {
					log.Warn().Str("command", command).Str("reason", reason).Msg("command rejected by safety filter")
					return map[string]any{
						"success": false,
						"error":   "safety check failed: " + reason,
					}, nil
				}
				dir := optString(args, "working_dir")
				if dir == "" {
					dir = sess.WorkingDir()
				}
				return exec.Shell(ctx, command, dir).Payload(), nil
			}),
		},
		{
			Name:        "get_system_info",
			Description: "Describe the host: OS, architecture, CPUs and registered programs",
			Category:    catalog.CategorySystem,
			Handler: catalog.Func(func(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
				host, _ := os.Hostname()
				return map[string]any{
					"success":    true,
					"system":     runtime.GOOS,
					"machine":    runtime.GOARCH,
					"hostname":   host,
					"cpus":       runtime.NumCPU(),
					"go_version": runtime.Version(),
					"programs":   exec.Programs(),
				}, nil
			}),
		},
	}
}
