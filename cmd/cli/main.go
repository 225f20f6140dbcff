package main

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	token := strings.TrimSpace(os.Getenv("UPTIME_TOKEN"))
	if token == "" {
		fmt.Println("Set UPTIME_TOKEN to a token from POST /api/tokens.")
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)
	ask := func(prompt, def string) string {
		fmt.Printf("%s [%s]: ", prompt, def)
		s, _ := reader.ReadString('\n')
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
		return def
	}

	raw := ask("Site to monitor (e.g., https://example.com/health)", "")
	protocol, rest, ok := strings.Cut(raw, "://")
	if !ok {
		protocol, rest = "https", raw
	}
	if rest == "" {
		fmt.Println("Invalid URL.")
		os.Exit(1)
	}
	method := strings.ToLower(ask("Method", "get"))
	timeout, err := strconv.Atoi(ask("Timeout in seconds (1-5)", "3"))
	if err != nil {
		fmt.Println("Invalid timeout.")
		os.Exit(1)
	}
	var codes []int
	for _, f := range strings.Split(ask("Success codes, comma separated", "200"), ",") {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			fmt.Println("Invalid status code:", f)
			os.Exit(1)
		}
		codes = append(codes, n)
	}

	body, _ := json.Marshal(map[string]any{
		"protocol":       strings.ToLower(protocol),
		"url":            rest,
		"method":         method,
		"successCodes":   codes,
		"timeoutSeconds": timeout,
	})
	req, _ := http.NewRequest(http.MethodPost, api+"/api/checks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("token", token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode == http.StatusCreated {
		fmt.Printf("Added check %v. It is probed every cycle; you get an SMS when it changes state.\n", out["id"])
		return
	}
	fmt.Println("API returned status:", resp.Status, out)
}
