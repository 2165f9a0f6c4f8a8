package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		accent.Printf("%s: ", label)
		line, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, nil
		}
		warn.Println("A value is required.")
	}
}

func renderLeaderboard(out map[string]any) {
	rows, _ := out["rows"].([]any)
	if len(rows) == 0 {
		printInfo("Nobody on the board yet.")
		return
	}
	accent.Println("Richest players")
	for i, raw := range rows {
		row, _ := raw.(map[string]any)
		neutral.Printf("%2d. %-24v $%v\n", i+1, displayName(row), row["net_worth"])
	}
}

func displayName(row map[string]any) any {
	if name, ok := row["name"].(string); ok && name != "" {
		return name
	}
	return row["actor_id"]
}

func renderBusinesses(out map[string]any) {
	businesses, _ := out["businesses"].([]any)
	if len(businesses) == 0 {
		printInfo("No businesses yet.")
		return
	}
	accent.Println("Businesses")
	for _, raw := range businesses {
		b, _ := raw.(map[string]any)
		status := "full"
		if hiring, _ := b["hiring"].(bool); hiring {
			status = "hiring"
		}
		neutral.Printf("- %v (owner %v), %v/%v employees, %s\n",
			b["name"], b["owner_name"], b["employee_count"], b["max_employees"], status)
	}
}

func renderManage(out map[string]any) {
	b, _ := out["business"].(map[string]any)
	accent.Printf("%v\n", b["name"])
	neutral.Printf("level %v | %v/%v employees | revenue $%v\n",
		b["level"], out["employee_count"], b["max_employees"], b["revenue"])
	if employees, ok := b["employees"].(map[string]any); ok && len(employees) > 0 {
		neutral.Println("Employees:")
		for id, raw := range employees {
			emp, _ := raw.(map[string]any)
			neutral.Printf("- %v (%s), %v work sessions\n", emp["name"], id, emp["total_work_sessions"])
		}
	}
	apps, _ := out["pending_applications"].([]any)
	if len(apps) > 0 {
		warn.Printf("%d pending application(s), see `hustled applications list`\n", len(apps))
	}
}

func renderUpgrades(out map[string]any) {
	upgrades, _ := out["upgrades"].([]any)
	accent.Println("Available upgrades")
	for i, raw := range upgrades {
		u, _ := raw.(map[string]any)
		suffix := ""
		if owned, _ := u["owned"].(bool); owned {
			suffix = " (owned)"
		}
		neutral.Printf("%d. %v, $%v. %v%s\n", i+1, u["name"], u["cost"], u["description"], suffix)
	}
}

func renderApplications(out map[string]any) {
	apps, _ := out["applications"].([]any)
	if len(apps) == 0 {
		printInfo("No pending applications.")
		return
	}
	accent.Println("Pending applications")
	for _, raw := range apps {
		app, _ := raw.(map[string]any)
		neutral.Printf("%v from %v\n", app["id"], app["applicant_name"])
		neutral.Printf("   reason: %v\n", app["reason"])
		neutral.Printf("   experience: %v\n", app["experience"])
		neutral.Printf("   availability: %v\n", app["availability"])
	}
	fmt.Println()
	printInfo("Approve with `hustled applications approve <id>`.")
}
