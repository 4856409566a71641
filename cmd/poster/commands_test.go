package main

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line string
		want command
	}{
		{"search Keanu Reeves", command{kind: cmdSearch, arg: "Keanu Reeves"}},
		{"Tom Hanks", command{kind: cmdSearch, arg: "Tom Hanks"}},
		{"pick 1, 3 5", command{kind: cmdPick, nums: []int{1, 3, 5}}},
		{"list all", command{kind: cmdList, arg: "all"}},
		{"style mind map", command{kind: cmdStyle, arg: "mind map"}},
		{"GENERATE", command{kind: cmdGenerate}},
		{"q", command{kind: cmdQuit}},
		{"   ", command{kind: cmdUnknown}},
	}
	for _, tc := range cases {
		got, err := parseCommand(tc.line)
		if err != nil {
			t.Fatalf("parseCommand(%q) error = %v", tc.line, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("parseCommand(%q) = %+v, want %+v", tc.line, got, tc.want)
		}
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, line := range []string{"search", "pick", "pick two", "pick 0"} {
		if _, err := parseCommand(line); err == nil {
			t.Fatalf("parseCommand(%q) expected error", line)
		}
	}
}
