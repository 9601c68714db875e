// teamroom CLI - command line client for a teamroom server
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/eldtechnologies/teamroom/clients/go/teamroom"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("TEAMROOM_URL")
	client := teamroom.NewClient(baseURL)
	cmd := os.Args[1]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case "health":
		resp, err := client.Health(ctx)
		exitOnError(err)
		printJSON(resp)

	case "register":
		need(3, "register <name> [email]")
		email := ""
		if len(os.Args) > 3 {
			email = os.Args[3]
		}
		u, err := client.Register(ctx, os.Args[2], email)
		exitOnError(err)
		fmt.Printf("Registered as: %s\n", u.ID)

	case "personas":
		list, err := client.Personas(ctx)
		exitOnError(err)
		for _, p := range list {
			fmt.Printf("  %-8s %-10s %-22s %s\n", p.ID, p.Name, p.Role, p.SkillTier)
		}

	case "project":
		need(3, "project <name> [description]")
		p, rooms, err := client.CreateProject(ctx, os.Args[2], strings.Join(os.Args[3:], " "))
		exitOnError(err)
		fmt.Printf("Project %s (%s)\n", p.ID, p.Status)
		printRooms(rooms)

	case "rooms":
		need(3, "rooms <project_id>")
		rooms, err := client.Rooms(ctx, os.Args[2])
		exitOnError(err)
		printRooms(rooms)

	case "team":
		need(3, "team <project_id> [persona_id...]")
		var team []teamroom.Persona
		var err error
		if len(os.Args) > 3 {
			team, err = client.SetTeam(ctx, os.Args[2], os.Args[3:]...)
		} else {
			team, err = client.Team(ctx, os.Args[2])
		}
		exitOnError(err)
		for _, p := range team {
			fmt.Printf("  %-8s %-10s %-22s %s\n", p.ID, p.Name, p.Role, p.SkillTier)
		}

	case "join":
		need(3, "join <room_id>")
		exitOnError(client.Join(ctx, os.Args[2]))
		fmt.Println("Joined")

	case "read":
		need(3, "read <room_id>")
		resp, err := client.GetMessages(ctx, os.Args[2], 20, 0)
		exitOnError(err)
		for _, msg := range resp.Messages {
			printMessage(msg)
		}

	case "post":
		need(4, "post <room_id> <message>")
		msg, err := client.PostMessage(ctx, os.Args[2], strings.Join(os.Args[3:], " "))
		exitOnError(err)
		fmt.Printf("Posted: %s\n", msg.ID)

	case "tail":
		need(3, "tail <room_id>")
		err := client.Tail(ctx, os.Args[2], func(msg teamroom.Message) error {
			printMessage(msg)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			exitOnError(err)
		}

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`teamroom CLI

Usage: teamroom <command> [options]

Commands:
  register <name> [email]     Register (or re-identify) as a human user
  personas                    List the persona catalog
  project <name> [desc]       Create a project and its rooms
  rooms <project_id>          List a project's rooms
  team <project_id> [ids...]  Show, or replace, a project's persona team
  join <room_id>              Join a room
  read <room_id>              Read recent messages
  post <room_id> <message>    Post a message
  tail <room_id>              Stream new messages
  health                      Check server health

Environment:
  TEAMROOM_URL      Server URL (default: http://localhost:8080)
  TEAMROOM_USER     User ID to act as (default: saved by register)
  TEAMROOM_CONFIG   Config directory (default: ~/.teamroom)`)
}

func need(n int, form string) {
	if len(os.Args) < n {
		fmt.Fprintln(os.Stderr, "Usage: teamroom "+form)
		os.Exit(1)
	}
}

func printRooms(rooms []teamroom.Room) {
	for _, r := range rooms {
		fmt.Printf("  %s  %-12s %-10s (%d msgs)\n", r.ID, r.Name, r.Kind, r.MessageCount)
	}
}

func printMessage(msg teamroom.Message) {
	ts := msg.CreatedAt.Local().Format("2006-01-02 15:04:05")
	fmt.Printf("[%s] %s: %s\n", ts, msg.SenderName, msg.Content)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
