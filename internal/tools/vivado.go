package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/executor"
	"github.com/arixa/arixa/internal/session"
)

// session key holding the last bitstream written by vivado_generate_bitstream
const keyBitstream = "vivado.bitstream"

var reportCommands = map[string]string{
	"utilization": "report_utilization",
	"timing":      "report_timing_summary",
	"power":       "report_power",
}

type vivado struct {
	exec *executor.Executor
}

func vivadoTools(exec *executor.Executor) []catalog.Descriptor {
	v := &vivado{exec: exec}
	jobs := catalog.Param{Name: "jobs", Type: catalog.TypeInteger, Description: "Parallel jobs", Default: 4}

	return []catalog.Descriptor{
		{
			Name:        "vivado_create_project",
			Description: "Create a new Vivado project",
			Category:    catalog.CategoryProject,
			Params: []catalog.Param{
				{Name: "project_name", Type: catalog.TypeString, Description: "Project name", Required: true},
				{Name: "project_path", Type: catalog.TypeString, Description: "Directory to create the project in", Required: true},
				{Name: "part", Type: catalog.TypeString, Description: "Target part, e.g. xc7a35tcpg236-1", Required: true},
				{Name: "board", Type: catalog.TypeString, Description: "Board part"},
			},
			Handler: catalog.Async(v.createProject),
		},
		{
			Name:        "vivado_open_project",
			Description: "Open an existing Vivado project (.xpr) and make it the current project",
			Category:    catalog.CategoryProject,
			Params: []catalog.Param{
				{Name: "project_path", Type: catalog.TypeString, Description: "Project file (.xpr)", Required: true},
			},
			Handler: catalog.Async(v.openProject),
		},
		{
			Name:        "vivado_add_source",
			Description: "Add source files (verilog, vhdl, xdc constraints or ip) to the current project",
			Category:    catalog.CategoryProject,
			Params: []catalog.Param{
				{Name: "file_path", Type: catalog.TypeString, Description: "Source file path", Required: true},
				{Name: "file_type", Type: catalog.TypeString, Description: "verilog, vhdl, xdc or ip"},
			},
			Handler: catalog.Async(v.addSource),
		},
		{
			Name:        "vivado_run_synthesis",
			Description: "Run synthesis on the current project",
			Category:    catalog.CategorySynthesis,
			Params:      []catalog.Param{jobs},
			Handler:     catalog.Async(v.runStep("synth_1")),
		},
		{
			Name:        "vivado_run_implementation",
			Description: "Run implementation (place and route) on the current project",
			Category:    catalog.CategoryImplementation,
			Params:      []catalog.Param{jobs},
			Handler:     catalog.Async(v.runStep("impl_1")),
		},
		{
			Name:        "vivado_generate_bitstream",
			Description: "Generate a bitstream from the implemented design",
			Category:    catalog.CategoryBitstream,
			Params: []catalog.Param{
				{Name: "bin_file", Type: catalog.TypeBoolean, Description: "Also write a compressed .bin file", Default: false},
			},
			Handler: catalog.Async(v.generateBitstream),
		},
		{
			Name:        "vivado_program_device",
			Description: "Program a connected FPGA over JTAG",
			Category:    catalog.CategoryBitstream,
			Params: []catalog.Param{
				{Name: "bitstream_path", Type: catalog.TypeString, Description: "Bitstream file; defaults to the last generated one"},
				{Name: "device", Type: catalog.TypeString, Description: "Hardware device name; defaults to the first device"},
			},
			Handler: catalog.Async(v.programDevice),
		},
		{
			Name:        "vivado_run_simulation",
			Description: "Run a behavioral simulation of a testbench",
			Category:    catalog.CategorySimulation,
			Params: []catalog.Param{
				{Name: "testbench", Type: catalog.TypeString, Description: "Top-level testbench module", Required: true},
				{Name: "sim_time", Type: catalog.TypeString, Description: "Simulation time, e.g. 1000ns", Default: "1000ns"},
			},
			Handler: catalog.Async(v.runSimulation),
		},
		{
			Name:        "vivado_get_reports",
			Description: "Produce and read back a utilization, timing or power report",
			Category:    catalog.CategoryProject,
			Params: []catalog.Param{
				{Name: "report_type", Type: catalog.TypeString, Description: "utilization, timing or power", Required: true},
			},
			Handler: catalog.Async(v.getReport),
		},
	}
}

// script prefixes cmds with open_project for the session's current project
// and terminates it with exit.
func script(sess *session.Context, cmds ...string) []string {
	out := make([]string, 0, len(cmds)+2)
	if p := sess.CurrentProject(); p != "" {
		out = append(out, fmt.Sprintf("open_project %s", quote(p)))
	}
	out = append(out, cmds...)
	return append(out, "exit")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func (v *vivado) createProject(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
	name, err := requireString(args, "project_name")
	if err != nil {
		return nil, err
	}
	dir, err := requireString(args, "project_path")
	if err != nil {
		return nil, err
	}
	part, err := requireString(args, "part")
	if err != nil {
		return nil, err
	}
	dir = resolvePath(sess, dir)

	cmds := []string{fmt.Sprintf("create_project %s %s -part %s", name, quote(dir), part)}
	if board := optString(args, "board"); board != "" {
		cmds = append(cmds, fmt.Sprintf("set_property board_part %s [current_project]", board))
	}
	cmds = append(cmds, "exit")

	res := v.exec.VivadoTCL(ctx, cmds)
	xpr := filepath.Join(dir, name+".xpr")
	if res.Success {
		sess.SetCurrentProject(xpr)
	}
	out := res.Payload()
	out["project_path"] = xpr
	return out, nil
}

func (v *vivado) openProject(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
	path, err := requireString(args, "project_path")
	if err != nil {
		return nil, err
	}
	path = resolvePath(sess, path)

	res := v.exec.VivadoTCL(ctx, []string{
		fmt.Sprintf("open_project %s", quote(path)),
		`puts "Project opened successfully"`,
		"exit",
	})
	if res.Success {
		sess.SetCurrentProject(path)
	}
	out := res.Payload()
	out["project_path"] = path
	return out, nil
}

func (v *vivado) addSource(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
	path, err := requireString(args, "file_path")
	if err != nil {
		return nil, err
	}
	path = resolvePath(sess, path)
	fileType := strings.ToLower(optString(args, "file_type"))

	var cmd string
	switch {
	case fileType == "xdc" || strings.HasSuffix(path, ".xdc"):
		cmd = fmt.Sprintf("add_files -fileset constrs_1 %s", quote(path))
	case fileType == "ip" || strings.HasSuffix(path, ".xci"):
		cmd = fmt.Sprintf("import_ip %s", quote(path))
	default:
		cmd = fmt.Sprintf("add_files %s", quote(path))
	}
	return v.exec.VivadoTCL(ctx, script(sess, cmd)).Payload(), nil
}

func (v *vivado) runStep(run string) catalog.Async {
	return func(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
		jobs := optInt(args, "jobs", 4)
		if jobs < 1 {
			jobs = 1
		}
		return v.exec.VivadoTCL(ctx, script(sess,
			fmt.Sprintf("launch_runs %s -jobs %d", run, jobs),
			fmt.Sprintf("wait_on_run %s", run),
		)).Payload(), nil
	}
}

func (v *vivado) generateBitstream(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
	bit := filepath.Join(v.exec.WorkingDir(), "design.bit")
	cmds := []string{"open_run impl_1"}
	if optBool(args, "bin_file") {
		cmds = append(cmds, "set_property BITSTREAM.GENERAL.COMPRESS TRUE [current_design]")
		cmds = append(cmds, fmt.Sprintf("write_bitstream -force -bin_file %s", quote(bit)))
	} else {
		cmds = append(cmds, fmt.Sprintf("write_bitstream -force %s", quote(bit)))
	}

	res := v.exec.VivadoTCL(ctx, script(sess, cmds...))
	if res.Success {
		sess.SetValue(keyBitstream, bit)
	}
	out := res.Payload()
	out["bitstream_path"] = bit
	return out, nil
}

func (v *vivado) programDevice(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
	bit := optString(args, "bitstream_path")
	if bit == "" {
		bit, _ = sess.Value(keyBitstream)
	}
	if bit == "" {
		return nil, fmt.Errorf("missing required parameter: bitstream_path (no bitstream generated in this session)")
	}
	bit = resolvePath(sess, bit)

	device := "[lindex [get_hw_devices] 0]"
	if d := optString(args, "device"); d != "" {
		device = fmt.Sprintf("[get_hw_devices %s]", d)
	}
	return v.exec.VivadoTCL(ctx, []string{
		"open_hw_manager",
		"connect_hw_server -allow_non_jtag",
		"open_hw_target",
		fmt.Sprintf("current_hw_device %s", device),
		fmt.Sprintf("set_property PROGRAM.FILE {%s} [current_hw_device]", bit),
		"program_hw_devices [current_hw_device]",
		"close_hw_manager",
		"exit",
	}).Payload(), nil
}

func (v *vivado) runSimulation(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
	tb, err := requireString(args, "testbench")
	if err != nil {
		return nil, err
	}
	simTime := optString(args, "sim_time")
	if simTime == "" {
		simTime = "1000ns"
	}
	return v.exec.VivadoTCL(ctx, script(sess,
		fmt.Sprintf("set_property top %s [get_filesets sim_1]", tb),
		"launch_simulation",
		fmt.Sprintf("run %s", simTime),
	)).Payload(), nil
}

func (v *vivado) getReport(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
	kind, err := requireString(args, "report_type")
	if err != nil {
		return nil, err
	}
	cmd, ok := reportCommands[kind]
	if !ok {
		return fail(fmt.Errorf("unknown report type: %s (want utilization, timing or power)", kind)), nil
	}
	rpt := filepath.Join(v.exec.WorkingDir(), kind+".rpt")

	res := v.exec.VivadoTCL(ctx, script(sess,
		"open_run impl_1",
		fmt.Sprintf("%s -file %s", cmd, quote(rpt)),
	))
	out := res.Payload()
	out["report_path"] = rpt
	// a failed run leaves any earlier report in place; don't return it
	if !res.Success {
		return out, nil
	}
	if data, err := os.ReadFile(rpt); err == nil {
		out["report_content"] = string(data)
	}
	return out, nil
}
