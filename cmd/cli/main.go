package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "employees":
		err = handleEmployees(args)
	case "tasks":
		err = handleTasks(args)
	case "crons":
		err = handleCrons(args)
	case "ready":
		err = checkReady()
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func handleEmployees(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: portal employees <list|show|archive|restore>")
		return nil
	}

	switch args[0] {
	case "list":
		return listEmployees(args[1:])
	case "show":
		return showEmployee(args[1:])
	case "archive":
		return archiveEmployees(args[1:])
	case "restore":
		return restoreEmployee(args[1:])
	default:
		return fmt.Errorf("unknown employees command: %s", args[0])
	}
}

func handleTasks(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: portal tasks <list|add>")
		return nil
	}

	switch args[0] {
	case "list":
		return listTasks()
	case "add":
		return addTask(args[1:])
	default:
		return fmt.Errorf("unknown tasks command: %s", args[0])
	}
}

func handleCrons(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: portal crons <list|sync>")
		return nil
	}

	switch args[0] {
	case "list":
		return listCrons()
	case "sync":
		return syncCrons()
	default:
		return fmt.Errorf("unknown crons command: %s", args[0])
	}
}

// Employee commands
func listEmployees(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	all := fs.Bool("all", false, "include archived employees")
	fs.Parse(args)

	path := "/api/hq/employees"
	if *all {
		path += "?includeArchived=true"
	}

	var roster struct {
		Employees []struct {
			ID         string     `json:"id"`
			FirstName  string     `json:"firstName"`
			LastName   string     `json:"lastName"`
			Email      string     `json:"email"`
			ArchivedAt *time.Time `json:"archivedAt"`
			Businesses []struct {
				Slug      string `json:"slug"`
				Completed int    `json:"completed"`
				Required  int    `json:"required"`
			} `json:"businesses"`
		} `json:"employees"`
		Summary map[string]int `json:"summary"`
	}
	if err := call(http.MethodGet, path, nil, &roster); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tPROGRESS\tARCHIVED")
	for _, e := range roster.Employees {
		progress := make([]string, 0, len(e.Businesses))
		for _, b := range e.Businesses {
			progress = append(progress, fmt.Sprintf("%s %d/%d", b.Slug, b.Completed, b.Required))
		}
		archived := ""
		if e.ArchivedAt != nil {
			archived = e.ArchivedAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\n", e.ID, e.FirstName, e.LastName, e.Email, strings.Join(progress, ", "), archived)
	}
	w.Flush()
	fmt.Printf("\ntotal %d, active %d, onboarded %d, opened confirmation %d\n",
		roster.Summary["total"], roster.Summary["active"], roster.Summary["fullyOnboarded"], roster.Summary["confirmationOpened"])
	return nil
}

func showEmployee(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: portal employees show <employee-id>")
	}
	var detail json.RawMessage
	if err := call(http.MethodGet, "/api/hq/employees/"+args[0], nil, &detail); err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, detail, "", "  "); err != nil {
		return err
	}
	fmt.Println(out.String())
	return nil
}

func archiveEmployees(args []string) error {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	reason := fs.String("reason", "", "why the employees are archived")
	fs.Parse(args)

	ids := fs.Args()
	if len(ids) == 0 {
		return fmt.Errorf("usage: portal employees archive [-reason text] <employee-id>...")
	}

	var result struct {
		Archived int `json:"archived"`
	}
	payload := map[string]any{"ids": ids, "reason": *reason}
	if err := call(http.MethodPost, "/api/hq/employees/archive", payload, &result); err != nil {
		return err
	}
	fmt.Printf("✓ Archived %d employee(s)\n", result.Archived)
	return nil
}

func restoreEmployee(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: portal employees restore <employee-id>")
	}
	if err := call(http.MethodPost, "/api/hq/employees/"+args[0]+"/restore", nil, nil); err != nil {
		return err
	}
	fmt.Printf("✓ Restored %s\n", args[0])
	return nil
}

// Task commands
func listTasks() error {
	var board struct {
		Tasks []struct {
			ID       string `json:"id"`
			Title    string `json:"title"`
			Status   string `json:"status"`
			Priority string `json:"priority"`
			Assignee string `json:"assignee"`
			Blockers []struct {
				Resolved bool `json:"resolved"`
			} `json:"blockers"`
		} `json:"tasks"`
	}
	if err := call(http.MethodGet, "/api/hq/tasks", nil, &board); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tPRIORITY\tTITLE\tASSIGNEE\tBLOCKED\tID")
	for _, t := range board.Tasks {
		open := 0
		for _, b := range t.Blockers {
			if !b.Resolved {
				open++
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", t.Status, t.Priority, t.Title, t.Assignee, open, t.ID)
	}
	w.Flush()
	return nil
}

func addTask(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	status := fs.String("status", "", "column (default backlog)")
	priority := fs.String("priority", "", "low, medium, high or urgent")
	assignee := fs.String("assignee", "", "who owns the task")
	fs.Parse(args)

	title := strings.Join(fs.Args(), " ")
	if title == "" {
		return fmt.Errorf("usage: portal tasks add [-status s] [-priority p] [-assignee a] <title>")
	}

	payload := map[string]string{"title": title}
	if *status != "" {
		payload["status"] = *status
	}
	if *priority != "" {
		payload["priority"] = *priority
	}
	if *assignee != "" {
		payload["assignee"] = *assignee
	}

	var task struct {
		ID string `json:"id"`
	}
	if err := call(http.MethodPost, "/api/hq/tasks", payload, &task); err != nil {
		return err
	}
	fmt.Printf("✓ Created task %s\n", task.ID)
	return nil
}

// Cron commands
func listCrons() error {
	var result struct {
		Groups []struct {
			Bot  string `json:"bot"`
			Jobs []struct {
				Name       string     `json:"name"`
				Schedule   string     `json:"schedule"`
				Enabled    bool       `json:"enabled"`
				LastRunAt  *time.Time `json:"lastRunAt"`
				LastStatus string     `json:"lastStatus"`
			} `json:"jobs"`
		} `json:"groups"`
	}
	if err := call(http.MethodGet, "/api/hq/crons", nil, &result); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BOT\tJOB\tSCHEDULE\tENABLED\tLAST RUN\tSTATUS")
	for _, g := range result.Groups {
		for _, j := range g.Jobs {
			lastRun := "-"
			if j.LastRunAt != nil {
				lastRun = j.LastRunAt.Local().Format(time.DateTime)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n", g.Bot, j.Name, j.Schedule, j.Enabled, lastRun, j.LastStatus)
		}
	}
	w.Flush()
	return nil
}

func syncCrons() error {
	var result struct {
		Synced int `json:"synced"`
	}
	if err := call(http.MethodPost, "/api/hq/crons/sync", nil, &result); err != nil {
		return err
	}
	fmt.Printf("✓ Synced %d job(s)\n", result.Synced)
	return nil
}

func checkReady() error {
	var result struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	err := call(http.MethodGet, "/readyz", nil, &result)
	for name, state := range result.Checks {
		fmt.Printf("%-10s %s\n", name, state)
	}
	if err != nil {
		return err
	}
	fmt.Printf("✓ %s\n", result.Status)
	return nil
}

// Helper functions
func getAPIURL() string {
	if url := os.Getenv("PORTAL_API"); url != "" {
		return strings.TrimRight(url, "/")
	}
	return "http://localhost:8080"
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// call sends an hq request with the shared secret and decodes the JSON reply into out.
// Non-2xx replies become errors carrying the server's message.
func call(method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, getAPIURL()+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if secret := os.Getenv("PORTAL_HQ_SECRET"); secret != "" {
		req.Header.Set("X-HQ-Secret", secret)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if out != nil && len(data) > 0 {
		// decoded before the status check; /readyz reports its checks with a 503
		_ = json.Unmarshal(data, out)
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s: %d", method, path, resp.StatusCode)
	}
	return nil
}

func printUsage() {
	fmt.Print(`Portal admin CLI

Usage:
  portal <command> [options]

Commands:
  employees  Roster operations (list, show, archive, restore)
  tasks      Task board (list, add)
  crons      Cron monitor (list, sync)
  ready      Check server readiness
  help       Show this help message

Environment Variables:
  PORTAL_API          Server base URL (default: http://localhost:8080)
  PORTAL_HQ_SECRET    Shared secret sent as X-HQ-Secret

Examples:
  portal employees list -all
  portal employees archive -reason "season ended" 7c1e... 9a2b...
  portal tasks add -priority high Fix the walk-in cooler
  portal crons sync
`)
}
