package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type embedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type commandReply struct {
	ID       string `json:"id"`
	Deferred bool   `json:"deferred"`
	Reply    *struct {
		Content string `json:"content"`
		Embed   *struct {
			Title  string       `json:"title"`
			Fields []embedField `json:"fields"`
			Footer string       `json:"footer"`
		} `json:"embed"`
	} `json:"reply"`
}

func main() {
	server := flag.String("server", "http://localhost:3210", "linkbot server URL")
	user := flag.String("user", "cli-user", "User id sent with each request")
	flag.Parse()

	// One-shot: shorten <url> [custom]
	if flag.NArg() > 0 {
		if !shorten(*server, *user, strings.Join(flag.Args(), " ")) {
			os.Exit(1)
		}
		return
	}

	fmt.Println("linkbot CLI")
	fmt.Printf("Server: %s | User: %s\n", *server, *user)
	fmt.Println("Enter a URL, optionally followed by a custom code. Type 'exit' or 'quit' to leave.")
	fmt.Println("Commands: /status")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		if input == "/status" {
			fetchStatus(*server)
			continue
		}

		shorten(*server, *user, input)
	}
}

func fetchStatus(server string) {
	resp, err := http.Get(server + "/api/gateway/status")
	if err != nil {
		printError("Failed to fetch status: %v", err)
		return
	}
	defer resp.Body.Close()

	var statuses []struct {
		Platform  string `json:"platform"`
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
		Details   string `json:"details,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		printError("Failed to parse status: %v", err)
		return
	}
	fmt.Println("Gateway Status:")
	for _, s := range statuses {
		icon := "\033[31m✗\033[0m"
		if s.Connected {
			icon = "\033[32m✓\033[0m"
		}
		fmt.Printf("  %s %s", icon, s.Platform)
		if s.Details != "" {
			fmt.Printf(" (%s)", s.Details)
		}
		if s.Error != "" {
			fmt.Printf(" \033[31m%s\033[0m", s.Error)
		}
		fmt.Println()
	}
}

// shorten sends the text form of the command and prints the reply. It
// reports whether a reply was received.
func shorten(server, user, text string) bool {
	body, _ := json.Marshal(map[string]string{
		"user_id":   user,
		"user_name": user,
		"text":      text,
	})

	client := &http.Client{Timeout: 65 * time.Second}
	resp, err := client.Post(
		server+"/api/gateway/rest/commands/shortenurl",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		printError("Request failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return false
	}

	var out commandReply
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		printError("Failed to parse response: %v", err)
		return false
	}
	if out.Reply == nil {
		printError("Empty reply")
		return false
	}

	if e := out.Reply.Embed; e != nil {
		fmt.Printf("\033[32m%s\033[0m\n", e.Title)
		for _, f := range e.Fields {
			fmt.Printf("  \033[36m%s:\033[0m %s\n", f.Name, f.Value)
		}
		if e.Footer != "" {
			fmt.Printf("  %s\n", e.Footer)
		}
		return true
	}
	fmt.Println(out.Reply.Content)
	return true
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
