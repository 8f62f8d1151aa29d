package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "auth":
		err = handleAuth(args)
	case "employees":
		err = listEmployees()
	case "leads":
		err = listLeads()
	case "contract":
		err = handleContract(args)
	case "reminders":
		err = runReminders()
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

func handleAuth(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: crm auth <login|logout|who>")
		return nil
	}

	switch args[0] {
	case "login":
		return loginUser(args[1:])
	case "logout":
		_ = os.Remove(tokenFile())
		fmt.Println("✓ Logged out")
		return nil
	case "who":
		token := loadToken()
		if token == "" {
			fmt.Println("Not logged in")
			return nil
		}
		fmt.Printf("✓ Logged in (token: %s...)\n", token[:min(20, len(token))])
		return nil
	default:
		return fmt.Errorf("unknown auth command: %s", args[0])
	}
}

func loginUser(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")
	_ = fs.Parse(args)

	if *email == "" || *password == "" {
		fs.PrintDefaults()
		return fmt.Errorf("email and password are required")
	}

	var result struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	if err := call(http.MethodPost, "/auth/login", map[string]string{"email": *email, "password": *password}, &result); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := saveToken(result.Token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	fmt.Printf("✓ Logged in as: %s (%s)\n", *email, result.Role)
	return nil
}

func listEmployees() error {
	var employees []map[string]any
	if err := call(http.MethodGet, "/employees", nil, &employees); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMPLOYEE\tNAME\tEMAIL\tSTATUS\tCURRENT")
	for _, e := range employees {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\n",
			e["_id"], e["employee_id"], e["name"], e["email"], e["employee_status"], e["is_current_employee"])
	}
	return w.Flush()
}

func listLeads() error {
	var leads []map[string]any
	if err := call(http.MethodGet, "/leads", nil, &leads); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCOMPANY\tSTATUS\tMEETING")
	for _, l := range leads {
		meeting := l["meetingDate"]
		if meeting == nil {
			meeting = "-"
		}
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", l["_id"], l["name"], l["company"], l["status"], meeting)
	}
	return w.Flush()
}

func handleContract(args []string) error {
	if len(args) < 2 || args[0] != "accept" {
		fmt.Println("Usage: crm contract accept <employee-record-id>")
		return nil
	}

	req, err := http.NewRequest(http.MethodPost, getAPIURL()+"/employees/"+args[1]+"/contract/accept", nil)
	if err != nil {
		return err
	}
	body, status, err := do(req)
	if err != nil {
		return err
	}
	var out struct {
		Acceptance struct {
			Accepted   bool   `json:"accepted"`
			AcceptedAt string `json:"accepted_at"`
		} `json:"acceptance"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &out)
	if status != http.StatusOK {
		return fmt.Errorf("accept failed (%d): %s", status, out.Message)
	}
	fmt.Printf("✓ Contract accepted at %s\n", out.Acceptance.AcceptedAt)
	return nil
}

func runReminders() error {
	var report struct {
		Leads    int `json:"leads"`
		Messages int `json:"messages"`
		Sent     int `json:"sent"`
		Pruned   int `json:"pruned"`
		Failed   int `json:"failed"`
	}
	if err := call(http.MethodPost, "/admin/reminders/run", nil, &report); err != nil {
		return err
	}
	fmt.Printf("✓ Reminders: %d leads, %d messages, %d sent, %d pruned, %d failed\n",
		report.Leads, report.Messages, report.Sent, report.Pruned, report.Failed)
	return nil
}

// call sends payload as JSON and decodes the envelope's data into out.
func call(method, path string, payload, out any) error {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, getAPIURL()+path, reader)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	body, status, err := do(req)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unexpected response (%d): %s", status, bytes.TrimSpace(body))
	}
	if status >= 400 || !env.Success {
		return fmt.Errorf("%s (%d)", env.Message, status)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func do(req *http.Request) ([]byte, int, error) {
	if token := loadToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return body, resp.StatusCode, err
}

func getAPIURL() string {
	if url := os.Getenv("CRM_API"); url != "" {
		return url
	}
	return "http://localhost:5000/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".crm", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0o700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0o600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(bytes.TrimSpace(data))
}

func printUsage() {
	fmt.Print(`CRM CLI

Usage:
  crm <command> [options]

Commands:
  auth       Staff authentication (login, logout, who)
  employees  List employees
  leads      List leads
  contract   Contract actions (accept <employee-record-id>)
  reminders  Run the meeting reminder dispatch now (admin)
  help       Show this help message

Environment Variables:
  CRM_API    API endpoint (default: http://localhost:5000/api)

Examples:
  crm auth login -email admin@example.com -password secret
  crm employees
  crm contract accept 4f6c0b8e-0d5e-4d7b-9b1b-6a2f4f7e9c11
  crm reminders
`)
}
