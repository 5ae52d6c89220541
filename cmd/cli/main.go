package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Adds a timer through the API, prompting for its name and duration.
func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}

	reader := bufio.NewReader(os.Stdin)
	ask := func(prompt string) string {
		fmt.Print(prompt)
		s, _ := reader.ReadString('\n')
		return strings.TrimSpace(s)
	}

	name := ask("Timer name (e.g., Generator): ")
	if name == "" {
		fmt.Println("A name is required.")
		return
	}
	category := ask("Category [generator|equipment|cooldown|other] (default other): ")
	if category == "" {
		category = "other"
	}
	minutes, err := strconv.Atoi(ask("Duration in minutes: "))
	if err != nil || minutes <= 0 {
		fmt.Println("Duration must be a positive number of minutes.")
		return
	}
	thresholdMin, _ := strconv.Atoi(ask("Warn when this many minutes remain (default 5): "))
	if thresholdMin <= 0 {
		thresholdMin = 5
	}

	body, _ := json.Marshal(map[string]any{
		"name":      name,
		"category":  category,
		"threshold": thresholdMin * 60_000,
		"days":      minutes / (24 * 60),
		"hours":     (minutes / 60) % 24,
		"minutes":   minutes % 60,
	})
	req, _ := http.NewRequest(http.MethodPost, api+"/api/timers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key := os.Getenv("API_KEY"); key != "" {
		req.Header.Set("X-API-Key", key)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		fmt.Println("Added! Check GET /api/timers.")
	} else {
		fmt.Println("API returned status:", resp.Status)
	}
}
