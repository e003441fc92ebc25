package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/planner"
)

// resolvePrompt asks for a prompt on an interactive terminal when none was
// given. An empty answer leaves the workflow demo prompt to the planner.
func resolvePrompt(req *domain.Request) error {
	if req.Prompt != "" || planner.IgnoresPrompt(req.Workflow) {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}

	demo := planner.DemoPrompt(req.Workflow, req.Kind)

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	label := "Prompt"
	if demo != "" {
		label = fmt.Sprintf("Prompt [%s]", demo)
	}
	input, err := line.Prompt(label + ": ")
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, liner.ErrPromptAborted):
			return context.Canceled
		}
		return err
	}
	req.Prompt = strings.TrimSpace(input)
	return nil
}
