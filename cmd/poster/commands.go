package main

import (
	"fmt"
	"strconv"
	"strings"
)

type commandKind int

const (
	cmdUnknown commandKind = iota
	cmdSearch
	cmdList
	cmdPick
	cmdStyle
	cmdPrompt
	cmdGenerate
	cmdHelp
	cmdQuit
)

type command struct {
	kind commandKind
	arg  string
	nums []int
}

const helpText = `Commands:
  search <name>    look up an actor and list their movies
  list [all]       show the movie list, selected movies are marked with *
  pick <n> [n...]  toggle movies by their number in the list
  style [name]     show styles or switch to one (Cinematic, Timeline Flow, Mind Map)
  prompt           show the prompt that would be sent
  generate         create the poster and save it locally
  help             show this text
  quit             leave`

// parseCommand reads one input line. A line that is not a known verb is
// treated as an actor search.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdUnknown}, nil
	}
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "search", "s":
		if rest == "" {
			return command{}, fmt.Errorf("search needs an actor name")
		}
		return command{kind: cmdSearch, arg: rest}, nil
	case "list", "ls":
		return command{kind: cmdList, arg: strings.ToLower(rest)}, nil
	case "pick", "p":
		nums, err := parseNumbers(rest)
		if err != nil {
			return command{}, err
		}
		return command{kind: cmdPick, nums: nums}, nil
	case "style":
		return command{kind: cmdStyle, arg: rest}, nil
	case "prompt":
		return command{kind: cmdPrompt}, nil
	case "generate", "gen", "go":
		return command{kind: cmdGenerate}, nil
	case "help", "?":
		return command{kind: cmdHelp}, nil
	case "quit", "exit", "q":
		return command{kind: cmdQuit}, nil
	default:
		return command{kind: cmdSearch, arg: line}, nil
	}
}

func parseNumbers(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("pick needs at least one movie number")
	}
	nums := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%q is not a movie number", f)
		}
		nums = append(nums, n)
	}
	return nums, nil
}
