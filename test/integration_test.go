package test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/minhvt/roomcast/internal/client"
	"github.com/minhvt/roomcast/internal/server"
	"github.com/minhvt/roomcast/pkg/protocol"
)

func startRelay(t *testing.T) string {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	srv := server.New(cfg, zerolog.Nop())
	go func() {
		_ = srv.Start()
	}()
	t.Cleanup(srv.Stop)

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("relay did not start in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return srv.Addr()
}

func connect(t *testing.T, addr, username string, opts ...client.Option) *client.Gateway {
	t.Helper()
	g := client.New(addr, username, opts...)
	if err := g.Connect(); err != nil {
		t.Fatalf("%s failed to connect: %v", username, err)
	}
	t.Cleanup(g.Disconnect)
	return g
}

func waitUsers(t *testing.T, ch <-chan []string, want ...string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case users := <-ch:
			if len(users) == len(want) {
				match := true
				for i := range want {
					if users[i] != want[i] {
						match = false
						break
					}
				}
				if match {
					return
				}
			}
			// Intermediate refresh, keep waiting.
		case <-deadline:
			t.Fatalf("never observed user list %v", want)
		}
	}
}

func TestIntegration_CreateAndList(t *testing.T) {
	addr := startRelay(t)
	alice := connect(t, addr, "alice")

	first, err := alice.CreateRoom(context.Background(), "lobby")
	if err != nil {
		t.Fatalf("CreateRoom error = %v", err)
	}
	if first.Creator != "alice" || first.Name != "lobby" {
		t.Errorf("created room = %+v", first)
	}

	rooms, err := alice.Rooms(context.Background())
	if err != nil {
		t.Fatalf("Rooms error = %v", err)
	}
	count := 0
	for _, room := range rooms {
		if room == first {
			count++
		}
	}
	if count != 1 {
		t.Errorf("listing contains the new room %d times, want exactly once", count)
	}

	second, err := alice.CreateRoom(context.Background(), "den")
	if err != nil {
		t.Fatalf("second CreateRoom error = %v", err)
	}
	if second.ID <= first.ID {
		t.Errorf("second id %d not greater than first id %d", second.ID, first.ID)
	}
}

func TestIntegration_BroadcastDelivery(t *testing.T) {
	addr := startRelay(t)
	alice := connect(t, addr, "alice")
	bob := connect(t, addr, "bob")
	carol := connect(t, addr, "carol")

	aliceMsgs := make(chan string, 8)
	bobMsgs := make(chan string, 8)
	carolMsgs := make(chan string, 8)
	alice.On(client.EventMessage, func(text string) { aliceMsgs <- text })
	bob.On(client.EventMessage, func(text string) { bobMsgs <- text })
	carol.On(client.EventMessage, func(text string) { carolMsgs <- text })

	bobUsers := make(chan []string, 8)
	bob.On(client.EventUsers, func(users []string) { bobUsers <- users })

	if _, err := alice.CreateRoom(context.Background(), "lobby"); err != nil {
		t.Fatalf("CreateRoom error = %v", err)
	}
	if err := bob.Join("lobby"); err != nil {
		t.Fatalf("Join error = %v", err)
	}
	waitUsers(t, bobUsers, "All", "alice", "bob")

	if err := alice.SendAll("hello room"); err != nil {
		t.Fatalf("SendAll error = %v", err)
	}

	for name, ch := range map[string]chan string{"alice": aliceMsgs, "bob": bobMsgs} {
		select {
		case text := <-ch:
			if !strings.HasSuffix(text, "- alice: hello room") {
				t.Errorf("%s received %q", name, text)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s never received the broadcast", name)
		}
	}

	select {
	case text := <-carolMsgs:
		t.Errorf("carol is outside the room but received %q", text)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIntegration_PrivateMessaging(t *testing.T) {
	addr := startRelay(t)
	alice := connect(t, addr, "alice")
	bob := connect(t, addr, "bob")

	aliceErrs := make(chan protocol.Event, 8)
	alicePrivate := make(chan string, 8)
	bobPrivate := make(chan string, 8)
	aliceUsers := make(chan []string, 8)
	alice.On(client.EventError, func(event protocol.Event) { aliceErrs <- event })
	alice.On(client.EventPrivate, func(text string) { alicePrivate <- text })
	bob.On(client.EventPrivate, func(text string) { bobPrivate <- text })
	alice.On(client.EventUsers, func(users []string) { aliceUsers <- users })

	if _, err := alice.CreateRoom(context.Background(), "lobby"); err != nil {
		t.Fatalf("CreateRoom error = %v", err)
	}
	if err := bob.Join("lobby"); err != nil {
		t.Fatalf("Join error = %v", err)
	}
	waitUsers(t, aliceUsers, "All", "alice", "bob")

	if err := alice.SendPrivate("alice", "echo chamber"); err != nil {
		t.Fatalf("SendPrivate error = %v", err)
	}
	select {
	case event := <-aliceErrs:
		if event.Kind != protocol.EventSelfMessageRejected {
			t.Errorf("self message produced %v, want SelfMessageRejected", event.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("self message produced no error event")
	}

	if err := alice.SendPrivate("ghost", "boo"); err != nil {
		t.Fatalf("SendPrivate error = %v", err)
	}
	select {
	case event := <-aliceErrs:
		if event.Kind != protocol.EventUserNotFound || event.User != "ghost" {
			t.Errorf("ghost message produced %+v, want UserNotFound ghost", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ghost message produced no error event")
	}

	if err := alice.SendPrivate("bob", "psst"); err != nil {
		t.Fatalf("SendPrivate error = %v", err)
	}
	select {
	case text := <-bobPrivate:
		if !strings.HasPrefix(text, "From ") || !strings.HasSuffix(text, "- alice: psst") {
			t.Errorf("bob received %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bob never received the private message")
	}
	select {
	case text := <-alicePrivate:
		if !strings.HasPrefix(text, "To ") || !strings.HasSuffix(text, "- bob: psst") {
			t.Errorf("alice echo = %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alice never received the echo")
	}
}

// Concurrent creates from distinct sessions yield distinct ids, and each
// blocking call releases only on the event carrying its own username.
func TestIntegration_ConcurrentCreates(t *testing.T) {
	addr := startRelay(t)
	alice := connect(t, addr, "alice")
	bob := connect(t, addr, "bob")

	var wg sync.WaitGroup
	results := make(chan protocol.Room, 2)
	for _, g := range []*client.Gateway{alice, bob} {
		wg.Add(1)
		go func(g *client.Gateway) {
			defer wg.Done()
			room, err := g.CreateRoom(context.Background(), "room-"+g.Username())
			if err != nil {
				t.Errorf("%s CreateRoom error = %v", g.Username(), err)
				return
			}
			if room.Creator != g.Username() {
				t.Errorf("%s released on creator %q", g.Username(), room.Creator)
			}
			results <- room
		}(g)
	}
	wg.Wait()
	close(results)

	ids := make(map[int]bool)
	for room := range results {
		if ids[room.ID] {
			t.Fatalf("id %d handed out twice", room.ID)
		}
		ids[room.ID] = true
	}
	if len(ids) != 2 {
		t.Errorf("got %d rooms, want 2", len(ids))
	}
}

func TestIntegration_JoinLeaveRestoresMembers(t *testing.T) {
	addr := startRelay(t)
	alice := connect(t, addr, "alice")
	bob := connect(t, addr, "bob")

	aliceUsers := make(chan []string, 8)
	alice.On(client.EventUsers, func(users []string) { aliceUsers <- users })

	if _, err := alice.CreateRoom(context.Background(), "lobby"); err != nil {
		t.Fatalf("CreateRoom error = %v", err)
	}
	if err := bob.Join("lobby"); err != nil {
		t.Fatalf("Join error = %v", err)
	}
	waitUsers(t, aliceUsers, "All", "alice", "bob")

	if err := bob.Leave(); err != nil {
		t.Fatalf("Leave error = %v", err)
	}
	waitUsers(t, aliceUsers, "All", "alice")
}

func TestIntegration_DisconnectRefreshesMembers(t *testing.T) {
	addr := startRelay(t)
	alice := connect(t, addr, "alice")
	bob := connect(t, addr, "bob")

	aliceUsers := make(chan []string, 8)
	alice.On(client.EventUsers, func(users []string) { aliceUsers <- users })

	if _, err := alice.CreateRoom(context.Background(), "lobby"); err != nil {
		t.Fatalf("CreateRoom error = %v", err)
	}
	if err := bob.Join("lobby"); err != nil {
		t.Fatalf("Join error = %v", err)
	}
	waitUsers(t, aliceUsers, "All", "alice", "bob")

	// Abnormal departure: the transport drops without a LeaveRoom.
	bob.Disconnect()
	waitUsers(t, aliceUsers, "All", "alice")
}

func TestIntegration_WebSocketGateway(t *testing.T) {
	addr := startRelay(t)
	alice := connect(t, addr, "alice", client.WithWebSocket())
	bob := connect(t, addr, "bob")

	bobMsgs := make(chan string, 8)
	bobUsers := make(chan []string, 8)
	bob.On(client.EventMessage, func(text string) { bobMsgs <- text })
	bob.On(client.EventUsers, func(users []string) { bobUsers <- users })

	if _, err := alice.CreateRoom(context.Background(), "lobby"); err != nil {
		t.Fatalf("CreateRoom over websocket error = %v", err)
	}
	if err := bob.Join("lobby"); err != nil {
		t.Fatalf("Join error = %v", err)
	}
	waitUsers(t, bobUsers, "All", "alice", "bob")

	if err := alice.SendAll("hello from websocket"); err != nil {
		t.Fatalf("SendAll error = %v", err)
	}
	select {
	case text := <-bobMsgs:
		if !strings.HasSuffix(text, "- alice: hello from websocket") {
			t.Errorf("bob received %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bob never received the websocket broadcast")
	}
}

func TestIntegration_JoinUnknownRoom(t *testing.T) {
	addr := startRelay(t)
	alice := connect(t, addr, "alice")

	errs := make(chan protocol.Event, 1)
	alice.On(client.EventError, func(event protocol.Event) { errs <- event })

	if err := alice.Join("nowhere"); err != nil {
		t.Fatalf("Join error = %v", err)
	}
	select {
	case event := <-errs:
		if event.Kind != protocol.EventRoomNotFound {
			t.Errorf("join produced %v, want RoomNotFound", event.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("join against unknown room produced no error event")
	}
	if err := alice.Leave(); err != nil {
		t.Errorf("Leave on an idle session failed: %v", err)
	}
}
