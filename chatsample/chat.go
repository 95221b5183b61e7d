// Package chatsample contains a chat hub. Each connection gets its own Chat, which keeps the name of its user.
package chatsample

//go:generate go run ../cmd/hubgen --file chat.go

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/philippseith/wsmanager"
)

// Chat is a per connection chat hub
type Chat struct {
	wsmanager.Hub
	name string
}

// NewChat is a factory for wsmanager.HubFactory
func NewChat(connectionID string) wsmanager.HubInterface {
	return &Chat{name: connectionID}
}

func (c *Chat) OnConnected(connectionID string) {
	info, _ := c.Logger()
	_ = info.Log("event", "connected", "name", c.name)
	_ = c.SendToOthers("joined", c.name)
}

func (c *Chat) OnDisconnected(connectionID string) {
	info, _ := c.Logger()
	_ = info.Log("event", "disconnected", "name", c.name)
	_ = c.SendToOthers("left", c.name)
}

// SetName changes the name under which the messages of this connection are sent
func (c *Chat) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name must not be empty")
	}
	old := c.name
	c.name = name
	c.Items().Store("name", name)
	return c.SendToOthers("renamed", old, name)
}

func (c *Chat) Name() string {
	return c.name
}

// Send sends message to all connections, including the caller
func (c *Chat) Send(message string) error {
	return c.SendToAll("receive", c.name, message)
}

// Whisper sends message to a single connection
func (c *Chat) Whisper(connectionID string, message string) error {
	return c.SendToConnection(connectionID, "whisper", c.name, message)
}

func (c *Chat) Echo(message string) string {
	return message
}

// Delay answers after delayMillis. The answer is canceled when the connection closes.
func (c *Chat) Delay(ctx context.Context, message string, delayMillis int) (string, error) {
	select {
	case <-time.After(time.Duration(delayMillis) * time.Millisecond):
		return fmt.Sprintf("%v (after %vms)", message, delayMillis), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Chat) Panic() {
	panic("Don't panic!")
}
