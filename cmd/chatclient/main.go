package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"marketplace/client"

	"github.com/c-bata/go-prompt"
	"github.com/joho/godotenv"
)

type session struct {
	api  *client.Client
	chat *client.ChatConn
}

func (s *session) executor(input string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return
	}
	args := strings.Fields(input)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch strings.ToLower(args[0]) {
	case "login":
		if len(args) != 3 {
			fmt.Println("Usage: login <username> <password>")
			return
		}
		user, err := s.api.Login(ctx, args[1], args[2])
		if err != nil {
			fmt.Println("Login failed:", err)
			return
		}
		fmt.Printf("Logged in as %s %s (id %d)\n", user.FirstName, user.LastName, user.ID)
	case "chats":
		chats, err := s.api.Chats(ctx)
		if err != nil {
			fmt.Println("Failed to list chats:", err)
			return
		}
		for _, chat := range chats {
			fmt.Printf("%-6d %-30s %s %s <-> %s %s\n", chat.ID, chat.Order.Title,
				chat.Producer.FirstName, chat.Producer.LastName, chat.Consumer.FirstName, chat.Consumer.LastName)
		}
	case "join":
		if len(args) != 2 {
			fmt.Println("Usage: join <chat id>")
			return
		}
		s.join(ctx, args[1])
	case "say":
		if s.chat == nil {
			fmt.Println("Join a chat first.")
			return
		}
		if err := s.chat.Send(strings.TrimSpace(strings.TrimPrefix(input, args[0]))); err != nil {
			fmt.Println("Send failed:", err)
		}
	case "leave":
		s.leave()
	case "help":
		fmt.Println("\n=== Marketplace chat CLI ===")
		fmt.Printf("%-28s : %s\n", "login <username> <password>", "Obtain an access token")
		fmt.Printf("%-28s : %s\n", "chats", "List your chats")
		fmt.Printf("%-28s : %s\n", "join <chat id>", "Show recent history and open the chat")
		fmt.Printf("%-28s : %s\n", "say <text>", "Send a message to the open chat")
		fmt.Printf("%-28s : %s\n", "leave", "Close the open chat")
		fmt.Printf("%-28s : %s\n", "exit", "Quit")
	case "exit":
		s.leave()
		os.Exit(0)
	default:
		fmt.Println("Unknown command. Type 'help' for a list of commands.")
	}
}

func (s *session) join(ctx context.Context, raw string) {
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fmt.Println("Chat id must be a number.")
		return
	}
	history, err := s.api.History(ctx, chatID, 1)
	if err != nil {
		fmt.Println("Failed to load history:", err)
		return
	}
	for i := len(history) - 1; i >= 0; i-- {
		printMessage(history[i].Sender.FirstName, history[i].Text, history[i].CreatedAt)
	}

	s.leave()
	conn, err := s.api.Dial(context.Background(), chatID)
	if err != nil {
		fmt.Println("Failed to open chat:", err)
		return
	}
	s.chat = conn
	go func() {
		for {
			in, err := conn.Receive()
			if err != nil {
				return
			}
			if in.Error != "" {
				fmt.Println("! " + in.Error)
				continue
			}
			printMessage(in.Message.Sender.FirstName, in.Message.Text, in.Message.CreatedAt)
		}
	}()
	fmt.Printf("Joined chat %d. Use 'say <text>'.\n", chatID)
}

func (s *session) leave() {
	if s.chat != nil {
		_ = s.chat.Close()
		s.chat = nil
	}
}

func printMessage(name, text string, at time.Time) {
	fmt.Printf("[%s] %s: %s\n", at.Local().Format("15:04"), name, text)
}

func completer(d prompt.Document) []prompt.Suggest {
	suggestions := []prompt.Suggest{
		{Text: "login", Description: "Obtain an access token"},
		{Text: "chats", Description: "List your chats"},
		{Text: "join", Description: "Open a chat"},
		{Text: "say", Description: "Send a message"},
		{Text: "leave", Description: "Close the open chat"},
		{Text: "help", Description: "Show commands"},
		{Text: "exit", Description: "Quit"},
	}
	if strings.Contains(d.TextBeforeCursor(), " ") {
		return nil
	}
	return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
}

func main() {
	_ = godotenv.Load()

	load := flag.Bool("load", false, "Run the load generator instead of the interactive client")
	baseURL := flag.String("url", envOr("MARKETPLACE_URL", "http://localhost:8080"), "Marketplace base URL")
	lc := parseLoadFlags()
	flag.Parse()

	if *load {
		if err := runLoad(*baseURL, lc); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	s := &session{api: client.New(*baseURL)}
	if token := os.Getenv("JWT_TOKEN"); token != "" {
		s.api.SetToken(token)
	}
	fmt.Println("Marketplace chat. Type 'help' to see available commands")
	p := prompt.New(
		s.executor,
		completer,
		prompt.OptionPrefix("> "),
		prompt.OptionTitle("marketplace chat"),
	)
	p.Run()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
