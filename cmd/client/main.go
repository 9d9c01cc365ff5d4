package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/minhvt/roomcast/internal/client"
	"github.com/minhvt/roomcast/pkg/protocol"
)

func main() {
	serverAddr := flag.String("server", "localhost:12344", "Relay address (e.g. localhost:12344)")
	username := flag.String("username", "", "Username for chat")
	useWS := flag.Bool("ws", false, "Connect over WebSocket instead of plain TCP")
	timeout := flag.Duration("timeout", client.DefaultWaitTimeout, "Bound for blocking relay waits")
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "Username is required. Use -username flag")
		os.Exit(1)
	}

	opts := []client.Option{client.WithWaitTimeout(*timeout)}
	if *useWS {
		opts = append(opts, client.WithWebSocket())
	}
	g := client.New(*serverAddr, *username, opts...)

	g.On(client.EventMessage, func(text string) {
		fmt.Println("Message " + text)
	})
	g.On(client.EventPrivate, func(text string) {
		fmt.Println("PrivateMessage " + text)
	})
	g.On(client.EventSystem, func(text string) {
		fmt.Println("*** " + text)
	})
	g.On(client.EventRoom, func(room protocol.Room) {
		fmt.Printf("New room #%d %q by %s\n", room.ID, room.Name, room.Creator)
	})
	g.On(client.EventJoined, func(room protocol.Room) {
		fmt.Printf("Joined room #%d %q\n", room.ID, room.Name)
	})
	g.On(client.EventUsers, func(users []string) {
		fmt.Printf("In room: %s\n", strings.Join(users, ", "))
	})
	g.On(client.EventError, func(event protocol.Event) {
		switch event.Kind {
		case protocol.EventUserNotFound:
			fmt.Printf("Error: no such user %q\n", event.User)
		case protocol.EventRoomNotFound:
			fmt.Println("Error: no such room")
		case protocol.EventSelfMessageRejected:
			fmt.Println("Error: cannot message yourself")
		default:
			fmt.Printf("Error: %s\n", event.Kind)
		}
	})
	g.On(client.EventDisconnected, func() {
		fmt.Println("Disconnected from relay")
	})

	if err := g.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer g.Disconnect()
	fmt.Printf("Connected to %s as %s\n", *serverAddr, *username)

	if err := listRooms(g); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Println("Commands: /rooms /create <name> /join <name> /leave /msg <user> <text> /quit; anything else broadcasts")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}
		if err := run(g, line); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}

	_ = g.Leave()
}

func run(g *client.Gateway, line string) error {
	if !strings.HasPrefix(line, "/") {
		return g.SendAll(line)
	}
	verb, rest, _ := strings.Cut(line[1:], " ")
	switch verb {
	case "rooms":
		return listRooms(g)
	case "create":
		if rest == "" {
			return fmt.Errorf("usage: /create <name>")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		room, err := g.CreateRoom(ctx, rest)
		if err != nil {
			return err
		}
		fmt.Printf("Created and joined room #%d %q\n", room.ID, room.Name)
		return nil
	case "join":
		if rest == "" {
			return fmt.Errorf("usage: /join <name>")
		}
		return g.Join(rest)
	case "leave":
		return g.Leave()
	case "msg":
		user, text, ok := strings.Cut(rest, " ")
		if !ok {
			return fmt.Errorf("usage: /msg <user> <text>")
		}
		return g.SendPrivate(user, text)
	default:
		return fmt.Errorf("unknown command /%s", verb)
	}
}

func listRooms(g *client.Gateway) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rooms, err := g.Rooms(ctx)
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		fmt.Println("No rooms yet. /create one")
		return nil
	}
	fmt.Printf("%d room(s):\n", len(rooms))
	for _, room := range rooms {
		fmt.Printf("  #%d %q by %s (group %s:%d)\n",
			room.ID, room.Name, room.Creator, room.GroupAddress, room.GroupPort)
	}
	return nil
}
