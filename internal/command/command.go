// Package command implements the presentation command grammar (C10,
// spec.md §4.10/§6): parsing a line of terminal input into either an
// action to dispatch, a response to print directly (e.g. help text), or
// a no-op. Grounded on
// _examples/original_source/server/src/terminal_session/ui.rs, whose
// Ui/UiGroup/UiCommand tree is re-expressed here as Grammar/Group/Command;
// the grammar itself is data (ui.toml, embedded), matching the original's
// include_str! of its own ui.toml.
package command

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed ui.toml
var grammarTOML string

// Kind discriminates an Interpretation.
type Kind int

const (
	// Noop is returned for a blank line.
	Noop Kind = iota
	// Action names a command to dispatch, with its remaining arguments.
	Action
	// Response is text to print directly, with no further dispatch
	// (e.g. help text or an "unrecognised command" line).
	Response
)

// Interpretation is the result of parsing one command line.
type Interpretation struct {
	Kind    Kind
	Command string
	Args    []string
	Prompt  string
}

// Command is one leaf command, optionally with subcommands.
type Command struct {
	Name     string  `toml:"name"`
	Args     string  `toml:"args"`
	HelpText string  `toml:"help_text"`
	Subgroup []Group `toml:"subgroup"`
}

// Group is a named cluster of commands, used only to organize help text.
type Group struct {
	HelpText string    `toml:"help_text"`
	Commands []Command `toml:"command"`
}

// Grammar is the full command tree.
type Grammar struct {
	HelpText string  `toml:"help_text"`
	Groups   []Group `toml:"group"`
}

var instance = sync.OnceValue(func() *Grammar {
	var g Grammar
	if _, err := toml.Decode(grammarTOML, &g); err != nil {
		panic(fmt.Sprintf("command: embedded grammar is invalid: %v", err))
	}
	return &g
})

// Default returns the grammar loaded from the embedded ui.toml.
func Default() *Grammar {
	return instance()
}

// Interpret parses line, the reserved command-prefix already stripped by
// the presentation adapter (spec.md §6's `/` or `.` handling happens one
// layer up; this function always treats its input as command-mode text).
func (g *Grammar) Interpret(line string) (Interpretation, error) {
	interp, err := g.interpretInner(line)
	if err != nil {
		return Interpretation{}, err
	}
	if interp.Kind != Action || !strings.EqualFold(interp.Command, "help") {
		return interp, nil
	}

	prompt, err := g.help(interp.Args)
	if err != nil {
		return Interpretation{}, err
	}
	return Interpretation{Kind: Response, Prompt: prompt}, nil
}

func (g *Grammar) interpretInner(line string) (Interpretation, error) {
	parts := fields(line)
	if len(parts) == 0 {
		return Interpretation{Kind: Noop}, nil
	}

	for _, group := range g.Groups {
		for _, cmd := range group.Commands {
			if strings.EqualFold(cmd.Name, parts[0]) {
				return cmd.interpretSubcommand([]string{cmd.Name}, parts[1:])
			}
		}
	}
	return Interpretation{
		Kind:   Response,
		Prompt: "Unrecognised command. Use `help` for more information.\n",
	}, nil
}

func (g *Grammar) help(parts []string) (string, error) {
	if len(parts) == 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "%s\n", g.HelpText)
		for _, group := range g.Groups {
			fmt.Fprintf(&b, "\n%s\n", group.HelpText)
			for _, cmd := range group.Commands {
				fmt.Fprintf(&b, "    %s %s\n", cmd.Name, cmd.Args)
			}
		}
		return b.String(), nil
	}

	head, rest := parts[0], parts[1:]
	for _, group := range g.Groups {
		for _, cmd := range group.Commands {
			if strings.EqualFold(cmd.Name, head) {
				return cmd.help([]string{cmd.Name}, rest)
			}
		}
	}
	return fmt.Sprintf("Unrecognised command %s\n", head), nil
}

func (c Command) interpretSubcommand(prefix, parts []string) (Interpretation, error) {
	command := strings.Join(prefix, " ")
	if len(c.Subgroup) == 0 {
		return Interpretation{Kind: Action, Command: command, Args: parts}, nil
	}
	if len(parts) == 0 {
		return Interpretation{Kind: Action, Command: command, Args: nil}, nil
	}

	head, rest := parts[0], parts[1:]
	for _, group := range c.Subgroup {
		for _, sub := range group.Commands {
			if strings.EqualFold(sub.Name, head) {
				return sub.interpretSubcommand(append(append([]string{}, prefix...), sub.Name), rest)
			}
		}
	}
	return Interpretation{
		Kind:   Response,
		Prompt: fmt.Sprintf("Unrecognised subcommand. Use `help %s` for more information.\n", command),
	}, nil
}

func (c Command) help(prefix, parts []string) (string, error) {
	command := strings.Join(prefix, " ")
	if len(parts) > 0 {
		head, rest := parts[0], parts[1:]
		for _, group := range c.Subgroup {
			for _, sub := range group.Commands {
				if strings.EqualFold(sub.Name, head) {
					return sub.help(append(append([]string{}, prefix...), sub.Name), rest)
				}
			}
		}
		return fmt.Sprintf("Unrecognised subcommand %s\n", head), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n%s\n", command, c.Args, c.HelpText)
	for _, group := range c.Subgroup {
		fmt.Fprintf(&b, "\n%s\n", group.HelpText)
		for _, sub := range group.Commands {
			fmt.Fprintf(&b, "    %s %s\n", sub.Name, sub.Args)
		}
	}
	return b.String(), nil
}

// fields splits line on ASCII whitespace, dropping empty fields, matching
// the original's split_ascii_whitespace().filter(not empty).
func fields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}
