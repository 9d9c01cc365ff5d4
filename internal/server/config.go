package server

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/minhvt/roomcast/internal/chat"
)

// Config holds the relay runtime settings.
type Config struct {
	// Addr is the single listen address for both TCP and WebSocket clients.
	Addr string
	// SessionBuffer is the outbound line buffer per session.
	SessionBuffer int
	// GroupAddressBase and GroupPortBase seed the vestigial per-room group
	// allocation carried in room descriptors.
	GroupAddressBase string
	GroupPortBase    int
	// LogLevel is a zerolog level name.
	LogLevel string
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Addr:             ":12344",
		SessionBuffer:    chat.DefaultSessionBuffer,
		GroupAddressBase: chat.DefaultGroupAddressBase,
		GroupPortBase:    chat.DefaultGroupPortBase,
		LogLevel:         "info",
	}
}

// LoadConfig reads an INI file over the defaults. Missing keys keep their
// default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	file, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	general := file.Section("general")
	if v := general.Key("addr").String(); v != "" {
		cfg.Addr = v
	}
	if v, err := general.Key("session_buffer").Int(); err == nil && v > 0 {
		cfg.SessionBuffer = v
	}

	rooms := file.Section("rooms")
	if v := rooms.Key("group_address_base").String(); v != "" {
		cfg.GroupAddressBase = v
	}
	if v, err := rooms.Key("group_port_base").Int(); err == nil && v > 0 {
		cfg.GroupPortBase = v
	}

	if v := file.Section("log").Key("level").String(); v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}
