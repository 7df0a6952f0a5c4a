package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/arixa/arixa/internal/catalog"
)

const basePrompt = `You are Arixa, an assistant that operates a local FPGA development environment.
You can drive the Vivado toolchain, read and write files, and run programs on this machine
by calling the tools listed below. Work step by step: call a tool, read its result, then
decide the next step. When the task is complete, answer in plain text.`

const directiveFormat = "If you cannot call tools natively, request them with a fenced JSON block:\n" +
	"```json\n" +
	`{"action": "tool_call", "tool": "<tool name>", "parameters": {"<param>": "<value>"}}` + "\n" +
	"```\n" +
	"For several dependent steps, list them in order:\n" +
	"```json\n" +
	`{"action": "multi_step", "steps": [{"tool": "<tool name>", "parameters": {}}]}` + "\n" +
	"```\n" +
	"To answer without calling tools, reply in plain text."

// PromptInfo is the environment described to the AI alongside the tools.
type PromptInfo struct {
	Programs    []string
	ProjectPath string
}

// promptCache rebuilds the system prompt whenever the catalog version moves.
type promptCache struct {
	mu      sync.Mutex
	version uint64
	built   bool
	prompt  string
}

func (p *promptCache) get(cat *catalog.Catalog, info PromptInfo) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v := cat.Version(); !p.built || v != p.version {
		p.prompt = BuildSystemPrompt(cat.List(), info)
		p.version = v
		p.built = true
	}
	return p.prompt
}

// BuildSystemPrompt renders the tool list grouped by category, in the order
// categories first appear in tools.
func BuildSystemPrompt(tools []catalog.Descriptor, info PromptInfo) string {
	var order []catalog.Category
	groups := make(map[catalog.Category][]catalog.Descriptor)
	for _, d := range tools {
		if _, seen := groups[d.Category]; !seen {
			order = append(order, d.Category)
		}
		groups[d.Category] = append(groups[d.Category], d)
	}

	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\n\n## Available tools\n")
	for _, cat := range order {
		fmt.Fprintf(&sb, "\n### %s\n", cat)
		for _, d := range groups[cat] {
			fmt.Fprintf(&sb, "- %s: %s", d.Name, d.Description)
			if len(d.Params) > 0 {
				names := make([]string, 0, len(d.Params))
				for _, p := range d.Params {
					n := p.Name
					if p.Required {
						n += "*"
					}
					names = append(names, n)
				}
				fmt.Fprintf(&sb, " (params: %s)", strings.Join(names, ", "))
			}
			sb.WriteByte('\n')
		}
	}

	sb.WriteString("\n## Environment\n")
	if len(info.Programs) > 0 {
		fmt.Fprintf(&sb, "Registered programs: %s\n", strings.Join(info.Programs, ", "))
	} else {
		sb.WriteString("Registered programs: none\n")
	}
	if info.ProjectPath != "" {
		fmt.Fprintf(&sb, "Default project path: %s\n", info.ProjectPath)
	}
	sb.WriteString("Parameters marked * are required.\n\n")
	sb.WriteString(directiveFormat)
	return sb.String()
}
