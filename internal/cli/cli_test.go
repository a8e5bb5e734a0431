package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/dictate.conf", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/dictate.conf", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseGrantRequiresRequestID(t *testing.T) {
	parsed, err := Parse([]string{"grant", "42"})
	require.NoError(t, err)
	require.Equal(t, CommandGrant, parsed.Command)
	require.Equal(t, int64(42), parsed.RequestID)

	_, err = Parse([]string{"grant"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "request-id")

	_, err = Parse([]string{"deny", "not-a-number"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be an integer")
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
		wantID   int64
	}{
		{
			name:     "help short flag",
			args:     []string{"-h"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "help long flag",
			args:     []string{"--help"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "version flag",
			args:     []string{"--version"},
			wantCmd:  CommandVersion,
			wantHelp: false,
		},
		{
			name:    "config after command",
			args:    []string{"status", "--config", "/tmp/cfg"},
			wantErr: "unexpected arguments after command",
		},
		{
			name:    "missing config path",
			args:    []string{"--config"},
			wantErr: "requires a path",
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: "unknown flag",
		},
		{
			name:    "unknown command",
			args:    []string{"bogus"},
			wantErr: "unknown command",
		},
		{
			name:    "extra args after command",
			args:    []string{"doctor", "extra"},
			wantErr: "unexpected arguments",
		},
		{
			name:    "grant with extra args",
			args:    []string{"grant", "7", "extra"},
			wantErr: "exactly one request-id",
		},
		{
			name:     "valid cancel command",
			args:     []string{"cancel"},
			wantCmd:  CommandCancel,
			wantHelp: false,
		},
		{
			name:     "valid run with config",
			args:     []string{"--config", "/tmp/cfg", "run"},
			wantCmd:  CommandRun,
			wantHelp: false,
			wantPath: "/tmp/cfg",
		},
		{
			name:    "valid deny with id",
			args:    []string{"deny", "9"},
			wantCmd: CommandDeny,
			wantID:  9,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
			require.Equal(t, tc.wantID, parsed.RequestID)
		})
	}
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("dictate")
	require.Contains(t, text, "run")
	require.Contains(t, text, "grant ID")
	require.Contains(t, text, "cancel")
	require.Contains(t, text, "doctor")
	require.Contains(t, text, "--config PATH")
}
