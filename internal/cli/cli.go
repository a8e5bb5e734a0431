package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandStatus  Command = "status"
	CommandCancel  Command = "cancel"
	CommandGrant   Command = "grant"
	CommandDeny    Command = "deny"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:     {},
	CommandStatus:  {},
	CommandCancel:  {},
	CommandGrant:   {},
	CommandDeny:    {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// commandsWithRequestID take a single numeric request-id argument.
var commandsWithRequestID = map[Command]struct{}{
	CommandGrant: {},
	CommandDeny:  {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	RequestID  int64
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			rest := args[i+1:]
			if _, wantsID := commandsWithRequestID[cmd]; wantsID {
				if len(rest) != 1 {
					return Parsed{}, fmt.Errorf("command %q requires exactly one request-id argument", arg)
				}
				id, err := strconv.ParseInt(rest[0], 10, 64)
				if err != nil {
					return Parsed{}, fmt.Errorf("invalid request-id %q: must be an integer", rest[0])
				}
				parsed.RequestID = id
				return parsed, nil
			}
			if len(rest) != 0 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  run       Start the dictation service and listen for the shortcut
  status    Print current dictation state
  cancel    Cancel the active dictation session and discard audio
  grant ID  Approve the pending permission request with the given id
  deny ID   Reject the pending permission request with the given id
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/signalhub-dictation/config.conf)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
