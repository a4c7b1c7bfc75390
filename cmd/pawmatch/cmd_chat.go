// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/pawmatch/services/pawmatch/dialog"
)

// warmTimeout bounds the startup model health check for the chat loop.
const warmTimeout = 45 * time.Second

// chatStyles holds the terminal styling for the interactive loop. Plain
// mode leaves everything unstyled for pipes and dumb terminals.
type chatStyles struct {
	prompt lipgloss.Style
	bot    lipgloss.Style
	dim    lipgloss.Style
	plain  bool
}

func newChatStyles() chatStyles {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return chatStyles{plain: true}
	}
	return chatStyles{
		prompt: lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		bot:    lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

func (s chatStyles) renderPrompt() string {
	if s.plain {
		return "You: "
	}
	return s.prompt.Render("You:") + " "
}

func (s chatStyles) renderBot(text string) string {
	if s.plain {
		return "PawMatch: " + text
	}
	return s.bot.Render("PawMatch: ") + text
}

func (s chatStyles) renderDim(text string) string {
	if s.plain {
		return text
	}
	return s.dim.Render(text)
}

func runChatCommand(_ *cobra.Command, args []string) {
	if len(args) > 0 {
		fmt.Printf("Warning: Unexpected arguments ignored: %v\n", args)
	}

	logger := setupLogging(true)
	shutdownTracing := setupTracing(logger)

	st, err := buildStack(logger)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer shutdownTracing(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// The models must be loaded before the first turn; a dead sidecar is a
	// startup failure, never a mid-conversation error.
	warmCtx, warmCancel := context.WithTimeout(ctx, warmTimeout)
	err = st.pipeline.Warm(warmCtx)
	warmCancel()
	if err != nil {
		log.Fatalf("Model backend not ready: %v", err)
	}

	styles := newChatStyles()
	session := dialog.NewSession()

	// Empty first turn yields the greeting.
	reply, err := st.controller.HandleTurn(ctx, session, "")
	if err != nil {
		log.Fatalf("Chat error: %v", err)
	}
	fmt.Println(styles.renderBot(reply.Text))
	fmt.Println(styles.renderDim("(type 'exit' or 'quit' to leave)"))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(styles.renderPrompt())
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		lower := strings.ToLower(input)
		if lower == "exit" || lower == "quit" || lower == "q" {
			fmt.Println(styles.renderBot("Goodbye! Hope you find your new best friend soon."))
			break
		}

		reply, err := st.controller.HandleTurn(ctx, session, input)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Fatalf("Chat error: %v", err)
		}

		fmt.Println(styles.renderBot(reply.Text))
		if reply.Query != nil {
			fmt.Println(styles.renderDim(describeQuery(reply.Query)))
		}
		if reply.State == dialog.StateEnded {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Error("stdin read failed", "error", err)
	}
}

// describeQuery renders the search payload line shown under a search echo.
func describeQuery(q *dialog.Query) string {
	parts := []string{"species=" + q.Species, "location=" + q.Location}
	for _, kv := range [][2]string{
		{"breed", q.Breed},
		{"color", q.Color},
		{"age", q.Age},
		{"size", q.Size},
		{"gender", q.Gender},
		{"fur_length", q.FurLength},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	return "[search: " + strings.Join(parts, " ") + "]"
}
