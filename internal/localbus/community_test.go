package localbus

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rmacdonaldsmith/pshare-go/pkg/message"
)

func newTestCommunity(t *testing.T, cfg *Config) *Community {
	t.Helper()
	c, err := NewCommunity(cfg)
	if err != nil {
		t.Fatalf("NewCommunity failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func connect(t *testing.T, c *Community, name string) *Client {
	t.Helper()
	client, err := c.Connect(name)
	if err != nil {
		t.Fatalf("Connect(%s) failed: %v", name, err)
	}
	return client
}

func receive(t *testing.T, client *Client) *message.Message {
	t.Helper()
	select {
	case m := <-client.Mail():
		return m
	case <-time.After(time.Second):
		t.Fatalf("%s: timed out waiting for mail", client.Name())
		return nil
	}
}

func expectNoMail(t *testing.T, client *Client) {
	t.Helper()
	select {
	case m := <-client.Mail():
		t.Fatalf("%s: unexpected mail %s", client.Name(), m.Name)
	default:
	}
}

func TestCommunity_PublishDeliversToRegisteredClients(t *testing.T) {
	c := newTestCommunity(t, &Config{Name: "vehicle"})
	pub := connect(t, c, "pNav")
	sub := connect(t, c, "pShare")
	other := connect(t, c, "pHelm")

	if err := sub.Register("NAV_X"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := pub.Publish(message.NewDouble("NAV_X", 3)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	m := receive(t, sub)
	if m.Name != "NAV_X" || m.Double != 3 {
		t.Errorf("Unexpected message: %+v", m)
	}
	if m.Source != "pNav" {
		t.Errorf("Expected source pNav, got %q", m.Source)
	}
	if m.Community != "vehicle" {
		t.Errorf("Expected community vehicle, got %q", m.Community)
	}
	expectNoMail(t, other)
}

func TestCommunity_NoEchoToPublisher(t *testing.T) {
	c := newTestCommunity(t, nil)
	client := connect(t, c, "pShare")

	client.Register("X")
	client.Publish(message.NewString("X", "mine"))

	expectNoMail(t, client)

	// registering again must not replay the client's own value either
	client.Register("X")
	expectNoMail(t, client)
}

func TestCommunity_RegisterDeliversLatest(t *testing.T) {
	c := newTestCommunity(t, nil)
	pub := connect(t, c, "pNav")
	sub := connect(t, c, "pShare")

	pub.Publish(message.NewDouble("DEPTH", 1))
	pub.Publish(message.NewDouble("DEPTH", 2))

	sub.Register("DEPTH")
	if m := receive(t, sub); m.Double != 2 {
		t.Errorf("Expected latest value 2, got %v", m.Double)
	}
	expectNoMail(t, sub)

	// unregister + register fetches the latest value again
	sub.Unregister("DEPTH")
	sub.Register("DEPTH")
	if m := receive(t, sub); m.Double != 2 {
		t.Errorf("Expected latest value 2 after re-registration, got %v", m.Double)
	}
}

func TestCommunity_Unregister(t *testing.T) {
	c := newTestCommunity(t, nil)
	pub := connect(t, c, "pNav")
	sub := connect(t, c, "pShare")

	sub.Register("X")
	if !sub.IsRegisteredFor("X") {
		t.Fatal("Expected registration for X")
	}
	sub.Unregister("X")
	if sub.IsRegisteredFor("X") {
		t.Fatal("Expected no registration for X after Unregister")
	}

	pub.Publish(message.NewDouble("X", 1))
	expectNoMail(t, sub)
}

func TestCommunity_WildcardRegistration(t *testing.T) {
	c := newTestCommunity(t, nil)
	nav := connect(t, c, "pNav")
	helm := connect(t, c, "pHelm")
	sub := connect(t, c, "pShare")

	if err := sub.RegisterWildcard("NAV_*", "pNav"); err != nil {
		t.Fatalf("RegisterWildcard failed: %v", err)
	}

	nav.Publish(message.NewDouble("NAV_X", 1))
	helm.Publish(message.NewDouble("NAV_Y", 2))
	nav.Publish(message.NewDouble("GPS_X", 3))

	if m := receive(t, sub); m.Name != "NAV_X" {
		t.Errorf("Expected NAV_X, got %s", m.Name)
	}
	expectNoMail(t, sub)

	if sub.IsRegisteredFor("NAV_X") {
		t.Error("IsRegisteredFor must only consider exact registrations")
	}
}

func TestCommunity_WildcardRegistrationDeliversLatest(t *testing.T) {
	c := newTestCommunity(t, nil)
	nav := connect(t, c, "pNav")
	sub := connect(t, c, "pShare")

	nav.Publish(message.NewDouble("B_X", 1))
	nav.Publish(message.NewDouble("A_X", 2))
	nav.Publish(message.NewDouble("A_Y", 3))

	sub.RegisterWildcard("*_X", "")

	first, second := receive(t, sub), receive(t, sub)
	if first.Name != "A_X" || second.Name != "B_X" {
		t.Errorf("Expected A_X then B_X, got %s then %s", first.Name, second.Name)
	}
	expectNoMail(t, sub)
}

func TestCommunity_HistoryIsBounded(t *testing.T) {
	c := newTestCommunity(t, &Config{HistoryDepth: 3})
	pub := connect(t, c, "pNav")

	for i := 0; i < 5; i++ {
		pub.Publish(message.NewDouble("X", float64(i)))
	}

	history := c.History("X", 10)
	if len(history) != 3 {
		t.Fatalf("Expected 3 retained values, got %d", len(history))
	}
	if history[0].Double != 2 || history[2].Double != 4 {
		t.Errorf("Expected values 2..4, got %v..%v", history[0].Double, history[2].Double)
	}

	if got := c.History("X", 1); len(got) != 1 || got[0].Double != 4 {
		t.Errorf("Expected only the latest value, got %v", got)
	}
	if got := c.History("X", 0); got != nil {
		t.Errorf("Expected nil for zero count, got %v", got)
	}
	if latest, ok := c.Latest("X"); !ok || latest.Double != 4 {
		t.Errorf("Expected latest 4, got %v", latest)
	}
	if _, ok := c.Latest("missing"); ok {
		t.Error("Expected no value for unknown name")
	}
}

func TestCommunity_MailboxOverflowDrops(t *testing.T) {
	c := newTestCommunity(t, &Config{MailboxSize: 2})
	pub := connect(t, c, "pNav")
	sub := connect(t, c, "pShare")
	sub.Register("X")

	for i := 0; i < 5; i++ {
		pub.Publish(message.NewDouble("X", float64(i)))
	}

	if sub.Dropped() != 3 {
		t.Errorf("Expected 3 dropped messages, got %d", sub.Dropped())
	}
}

func TestCommunity_ConnectErrors(t *testing.T) {
	c := newTestCommunity(t, nil)
	connect(t, c, "pShare")

	if _, err := c.Connect("pShare"); !errors.Is(err, ErrDuplicateClient) {
		t.Errorf("Expected ErrDuplicateClient, got %v", err)
	}
	if _, err := c.Connect(""); !errors.Is(err, ErrEmptyClientName) {
		t.Errorf("Expected ErrEmptyClientName, got %v", err)
	}
}

func TestCommunity_PublishErrors(t *testing.T) {
	c := newTestCommunity(t, nil)
	client := connect(t, c, "pShare")

	if err := client.Publish(nil); !errors.Is(err, ErrNilMessage) {
		t.Errorf("Expected ErrNilMessage, got %v", err)
	}
	if err := client.Publish(&message.Message{}); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Expected ErrEmptyName, got %v", err)
	}
}

func TestCommunity_CloseDisconnectsClients(t *testing.T) {
	c := newTestCommunity(t, nil)
	client := connect(t, c, "pShare")

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close should be idempotent, got %v", err)
	}

	if _, open := <-client.Mail(); open {
		t.Error("Expected mailbox to be closed")
	}
	if err := client.Publish(message.NewDouble("X", 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := c.Connect("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestClient_CloseAllowsReconnect(t *testing.T) {
	c := newTestCommunity(t, nil)
	client := connect(t, c, "pShare")

	client.Close()
	if names := c.Clients(); len(names) != 0 {
		t.Errorf("Expected no clients, got %v", names)
	}
	connect(t, c, "pShare")
}

func TestCommunity_ConcurrentPublishers(t *testing.T) {
	c := newTestCommunity(t, &Config{MailboxSize: 10000, HistoryDepth: 1})
	sub := connect(t, c, "pShare")
	sub.RegisterWildcard("*", "*")

	const publishers = 4
	const perPublisher = 250

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		client := connect(t, c, fmt.Sprintf("app%d", p))
		wg.Add(1)
		go func(client *Client) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				client.Publish(message.NewDouble(client.Name()+"_VAR", float64(i)))
			}
		}(client)
	}
	wg.Wait()

	if got := len(sub.Mail()); got != publishers*perPublisher {
		t.Errorf("Expected %d messages, got %d", publishers*perPublisher, got)
	}
	if names := c.Names(); len(names) != publishers {
		t.Errorf("Expected %d names, got %v", publishers, names)
	}
}
