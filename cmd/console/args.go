package main

import (
	"errors"
	"strings"
)

const imageSeparator = " - "

var errNoArguments = errors.New("no arguments")

type mode int

const (
	modeQuery mode = iota
	modeChat
)

type invocation struct {
	mode     mode
	prompt   string
	location string
}

// parseArgs accepts "<prompt> - <image path or URL>", "<prompt>" or "chat". Arguments are joined with spaces, so
// the quotes around the whole input are optional.
func parseArgs(args []string) (invocation, error) {
	input := strings.TrimSpace(strings.Join(args, " "))
	if input == "" {
		return invocation{}, errNoArguments
	}
	if strings.EqualFold(input, "chat") {
		return invocation{mode: modeChat}, nil
	}
	prompt, location := splitPromptAndImage(input)
	return invocation{
		mode:     modeQuery,
		prompt:   prompt,
		location: location,
	}, nil
}

// splitPromptAndImage splits on the last separator: prompts often contain dashes, paths rarely do.
func splitPromptAndImage(input string) (string, string) {
	index := strings.LastIndex(input, imageSeparator)
	if index == -1 {
		return strings.TrimSpace(input), ""
	}
	return strings.TrimSpace(input[:index]), strings.TrimSpace(input[index+len(imageSeparator):])
}

func isExitCommand(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit", "q":
		return true
	default:
		return false
	}
}
