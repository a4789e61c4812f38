package repl

import (
	"fmt"
	"strconv"
	"strings"
)

// command is one parsed line of REPL input.
type command struct {
	name string
	arg  string
	n    int
	text string
}

const (
	cmdSend   = "send"
	cmdNew    = "new"
	cmdList   = "list"
	cmdSwitch = "switch"
	cmdDelete = "delete"
	cmdEdit   = "edit"
	cmdRegen  = "regen"
	cmdExport = "export"
	cmdHelp   = "help"
	cmdQuit   = "quit"
)

const helpText = `Commands:
  /new [title]       start a new conversation
  /list              list conversations
  /switch <n>        switch to conversation n from /list
  /delete <n>        delete conversation n from /list
  /edit <n> <text>   replace your message n and ask again
  /regen             regenerate the last reply
  /export [dir]      export the conversation as markdown
  /help              show this help
  /quit              leave
Anything else is sent as a message.`

// parseCommand turns an input line into a command. Lines that do not start
// with "/" are messages.
func parseCommand(line string) (command, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return command{name: cmdSend, text: line}, nil
	}

	name, rest, _ := strings.Cut(trimmed[1:], " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(name) {
	case "new":
		return command{name: cmdNew, arg: rest}, nil
	case "list", "ls":
		return command{name: cmdList}, nil
	case "switch", "sw":
		n, err := parseIndex(rest)
		return command{name: cmdSwitch, n: n}, err
	case "delete", "rm":
		n, err := parseIndex(rest)
		return command{name: cmdDelete, n: n}, err
	case "edit":
		num, text, _ := strings.Cut(rest, " ")
		n, err := parseIndex(num)
		if err != nil {
			return command{}, err
		}
		if strings.TrimSpace(text) == "" {
			return command{}, fmt.Errorf("usage: /edit <n> <text>")
		}
		return command{name: cmdEdit, n: n, text: text}, nil
	case "regen", "regenerate":
		return command{name: cmdRegen}, nil
	case "export":
		return command{name: cmdExport, arg: rest}, nil
	case "help", "?":
		return command{name: cmdHelp}, nil
	case "quit", "exit", "q":
		return command{name: cmdQuit}, nil
	default:
		return command{}, fmt.Errorf("unknown command /%s (try /help)", name)
	}
}

func parseIndex(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("missing number")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%q is not a positive number", s)
	}
	return n, nil
}
