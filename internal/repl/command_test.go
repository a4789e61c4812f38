package repl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		want command
	}{
		{"hello there", command{name: cmdSend, text: "hello there"}},
		{"  what is /etc?", command{name: cmdSend, text: "  what is /etc?"}},
		{"/new", command{name: cmdNew}},
		{"/new Trip planning", command{name: cmdNew, arg: "Trip planning"}},
		{"/list", command{name: cmdList}},
		{"/ls", command{name: cmdList}},
		{"/switch 2", command{name: cmdSwitch, n: 2}},
		{"/delete 1", command{name: cmdDelete, n: 1}},
		{"/edit 3 try again please", command{name: cmdEdit, n: 3, text: "try again please"}},
		{"/regen", command{name: cmdRegen}},
		{"/export out/docs", command{name: cmdExport, arg: "out/docs"}},
		{"/HELP", command{name: cmdHelp}},
		{"/exit", command{name: cmdQuit}},
	}
	for _, tc := range cases {
		got, err := parseCommand(tc.line)
		require.NoError(t, err, tc.line)
		require.Equal(t, tc.want, got, tc.line)
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{
		"/switch",
		"/switch two",
		"/delete 0",
		"/edit 2",
		"/edit x hello",
		"/frobnicate",
	} {
		_, err := parseCommand(line)
		require.Error(t, err, line)
	}
}
