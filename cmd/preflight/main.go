// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	admin := strings.TrimSpace(os.Getenv("ADMIN_API_KEYS"))
	pub := strings.TrimSpace(os.Getenv("PUBLIC_API_KEYS"))
	apiAddr := strings.TrimSpace(os.Getenv("ADDR"))
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("STORAGE_DRIVER")))
	dsn := strings.TrimSpace(os.Getenv("STORAGE_DSN"))
	slack := strings.TrimSpace(os.Getenv("SLACK_WEBHOOK"))

	if admin == "" {
		fail("ADMIN_API_KEYS is empty (anyone can create and delete timers).")
	}
	if pub == "" {
		warn("PUBLIC_API_KEYS is empty; only admin keys can read.")
	}

	if apiAddr == "" {
		warn("ADDR is empty; default 127.0.0.1:8080 will be used.")
	} else {
		ok("ADDR=" + apiAddr)
	}

	switch driver {
	case "", "memory":
		warn("STORAGE_DRIVER=memory; timers and resources are lost on restart.")
	case "sqlite":
		ok("STORAGE_DRIVER=sqlite")
	case "postgres":
		if dsn == "" {
			fail("STORAGE_DRIVER=postgres needs STORAGE_DSN.")
		}
		ok("STORAGE_DRIVER=postgres")
	default:
		fail("STORAGE_DRIVER must be memory, sqlite or postgres.")
	}

	for _, name := range []string{"BANNER_TTL_MS", "INAPP_LIMIT", "PUBLIC_RPM", "PUBLIC_BURST"} {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err != nil || n < 0 {
				fail(name + " must be a non-negative integer.")
			}
		}
	}

	if os.Getenv("NOTIFY_PERMISSION") == "false" {
		warn("NOTIFY_PERMISSION=false; system notifications and reminders are disabled.")
	}
	if slack == "" {
		warn("SLACK_WEBHOOK empty; notifications only go to the log.")
	} else {
		ok("SLACK_WEBHOOK present")
	}

	ok("preflight passed")
}
