// Command terminal is a readline-based REPL in front of the Orchestrator's
// HTTP API: plain lines are sent as chat messages, slash commands control
// the session and the local view onto the agent event stream.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/skydeck/missionctl/pkg/orchestrator"
)

func main() {
	var apiURL string

	cmd := &cobra.Command{
		Use:   "terminal",
		Short: "Interactive REPL in front of the Orchestrator's HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(apiURL)
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "http://localhost:3000", "Orchestrator HTTP API base URL")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runREPL(baseURL string) error {
	cli := &client{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 2 * time.Minute}}

	cacheDir, _ := os.UserHomeDir()
	historyFile := filepath.Join(cacheDir, ".missionctl_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[36mmission>\033[0m ",
		HistoryFile:       historyFile,
		HistorySearchFold: true,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()

	fmt.Println("missionctl terminal — /help for commands, Ctrl-D to quit")

	repl := &repl{cli: cli, streaming: false}
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if !repl.runCommand(line) {
				return nil
			}
			continue
		}
		repl.sendMessage(line)
	}
}

// repl holds the REPL's local view of the conversation: the active session
// and whether /stream toggles live event narration.
type repl struct {
	cli       *client
	sessionID string
	streaming bool
}

func (r *repl) runCommand(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/help":
		fmt.Println("/help              show this message")
		fmt.Println("/status            show current session id and streaming mode")
		fmt.Println("/clear             forget the active session id")
		fmt.Println("/history           print the active session's message history")
		fmt.Println("/stream            toggle live agent-event narration")
		fmt.Println("/quit              exit")
	case "/status":
		mode := "off"
		if r.streaming {
			mode = "on"
		}
		fmt.Printf("session: %s\nstreaming: %s\n", orEmpty(r.sessionID), mode)
	case "/clear":
		r.sessionID = ""
		fmt.Println("session cleared")
	case "/history":
		r.printHistory()
	case "/stream":
		r.streaming = !r.streaming
		fmt.Printf("streaming %s\n", map[bool]string{true: "enabled", false: "disabled"}[r.streaming])
	case "/quit":
		return false
	default:
		fmt.Printf("unknown command %q, try /help\n", fields[0])
	}
	return true
}

func (r *repl) sendMessage(message string) {
	req := orchestrator.ChatRequest{Message: message, SessionID: r.sessionID}

	var resp *orchestrator.ChatResponse
	var err error
	if r.streaming {
		resp, err = r.cli.chatStream(req, func(event, data string) {
			fmt.Printf("\033[2m[%s] %s\033[0m\n", event, data)
		})
	} else {
		resp, err = r.cli.chat(req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}

	r.sessionID = resp.SessionID
	fmt.Println(resp.Answer)
	if resp.NeedsClarification {
		fmt.Println("(clarification requested)")
	}
}

func (r *repl) printHistory() {
	if r.sessionID == "" {
		fmt.Println("no active session")
		return
	}
	history, err := r.cli.history(r.sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	for _, msg := range history {
		fmt.Printf("%s: %s\n", msg["role"], msg["content"])
	}
}

func orEmpty(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// client is a thin HTTP client for the Orchestrator's user-facing API.
type client struct {
	baseURL string
	http    *http.Client
}

func (c *client) chat(req orchestrator.ChatRequest) (*orchestrator.ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpResp, err := c.http.Post(c.baseURL+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var resp orchestrator.ChatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) chatStream(req orchestrator.ChatRequest, onEvent func(event, data string)) (*orchestrator.ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpResp, err := c.http.Post(c.baseURL+"/api/chat/stream", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	scanner := bufio.NewScanner(httpResp.Body)
	var event, data string
	var resp orchestrator.ChatResponse
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if event == "" {
				continue
			}
			switch event {
			case "result":
				if err := json.Unmarshal([]byte(data), &resp); err != nil {
					return nil, err
				}
			case "error":
				return nil, fmt.Errorf("stream error: %s", data)
			default:
				onEvent(event, data)
			}
			event, data = "", ""
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) history(sessionID string) ([]map[string]any, error) {
	httpResp, err := c.http.Get(c.baseURL + "/api/sessions/" + sessionID + "/history")
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	var body struct {
		History []map[string]any `json:"history"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.History, nil
}
