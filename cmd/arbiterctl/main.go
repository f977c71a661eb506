// Command arbiterctl is an interactive admin console for a running arbiter
// server.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"arbiter/internal/auth"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8080", "arbiter server base URL")
	flag.Parse()

	client := newClient(*addr)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "arbiter> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "arbiterctl: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("arbiter admin console, type 'help' for commands")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		if err := dispatch(client, rl, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.arbiterctl_history"
}

func dispatch(c *client, rl *readline.Instance, line string) error {
	parts := strings.Fields(line)
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "help":
		printHelp()
		return nil
	case "login":
		if len(args) != 1 {
			return fmt.Errorf("usage: login <username>")
		}
		password, err := rl.ReadPassword("password: ")
		if err != nil {
			return err
		}
		return c.login(args[0], string(password))
	case "clock":
		if len(args) != 1 {
			return fmt.Errorf("usage: clock <show|start|pause|unpause>")
		}
		return c.clock(args[0])
	case "announce":
		if len(args) == 0 {
			return fmt.Errorf("usage: announce <message>")
		}
		return c.announce(strings.Join(args, " "))
	case "kick":
		if len(args) != 1 {
			return fmt.Errorf("usage: kick <username>")
		}
		return c.kick(args[0])
	case "registry":
		return c.registry()
	case "leaderboard":
		return c.leaderboard()
	case "status":
		if len(args) != 1 {
			return fmt.Errorf("usage: status <submission-id>")
		}
		return c.submissionStatus(args[0])
	case "cancel":
		if len(args) != 1 {
			return fmt.Errorf("usage: cancel <submission-id>")
		}
		return c.cancel(args[0])
	case "hash-password":
		password, err := rl.ReadPassword("password: ")
		if err != nil {
			return err
		}
		hash, err := auth.HashPassword(string(password))
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
}

func printHelp() {
	fmt.Print(`commands:
  login <username>         authenticate against the server
  clock show               print the competition clock
  clock start              start the competition
  clock pause              pause the competition
  clock unpause            resume the competition
  announce <message>       broadcast an announcement
  kick <username>          disconnect a user's websocket sessions
  registry                 list in-flight submissions
  leaderboard              print the leaderboard
  status <submission-id>   show a submission's judge state
  cancel <submission-id>   cancel an in-flight submission
  hash-password            bcrypt-hash a password for packet accounts
  exit                     leave the console
`)
}
