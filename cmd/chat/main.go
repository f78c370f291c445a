// Command chat is an interactive terminal client for the Pathwise API.
// It reads questions from stdin, posts them to /api/ask, and prints the
// answer with its citations and verifier findings.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Answer    string `json:"answer"`
	Intent    string `json:"intent"`
	Citations []struct {
		Index    int    `json:"index"`
		Filename string `json:"filename"`
	} `json:"citations"`
	Issues []struct {
		Kind   string `json:"kind"`
		Detail string `json:"detail"`
	} `json:"issues"`
	Degraded bool   `json:"degraded"`
	Error    string `json:"error"`
}

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "Pathwise API base URL")
	flag.Parse()

	client := &http.Client{Timeout: 2 * time.Minute}
	in := bufio.NewScanner(os.Stdin)

	fmt.Println("pathwise chat: ask a career question, or 'quit' to exit")
	for {
		fmt.Print("> ")
		if !in.Scan() {
			return
		}
		query := strings.TrimSpace(in.Text())
		if query == "" {
			continue
		}
		if query == "quit" || query == "exit" {
			return
		}

		resp, err := ask(client, *apiURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printAnswer(resp)
	}
}

func ask(client *http.Client, apiURL, query string) (*askResponse, error) {
	body, _ := json.Marshal(askRequest{Query: query})
	resp, err := client.Post(apiURL+"/api/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out askResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%s (%d)", out.Error, resp.StatusCode)
	}
	return &out, nil
}

func printAnswer(resp *askResponse) {
	fmt.Println()
	fmt.Println(resp.Answer)
	if len(resp.Citations) > 0 {
		fmt.Println()
		for _, c := range resp.Citations {
			fmt.Printf("  [%d] %s\n", c.Index, c.Filename)
		}
	}
	for _, issue := range resp.Issues {
		fmt.Printf("  ! %s: %s\n", issue.Kind, issue.Detail)
	}
	if resp.Degraded {
		fmt.Println("  (degraded: keyword search only)")
	}
	fmt.Println()
}
