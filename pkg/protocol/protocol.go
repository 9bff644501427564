package protocol

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Command represents a command sent to the engine
type Command struct {
	Type string                 `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Response represents a response from the engine
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Status represents the current daemon status
type Status struct {
	Firmware        string    `json:"firmware"`
	DeviceClass     string    `json:"device_class"`
	Band            int       `json:"band"`
	Channel         int       `json:"channel"`
	Frequency       float64   `json:"frequency"`
	Running         bool      `json:"running"`
	Uptime          string    `json:"uptime"`
	StartTime       time.Time `json:"start_time"`
	Version         string    `json:"version"`
	EventsProcessed uint64    `json:"events_processed"`
	EventsDropped   uint64    `json:"events_dropped"`
	Observations    uint64    `json:"observations"`
	Error           string    `json:"error,omitempty"`
}

// ParseCommand parses a text command into a Command struct.
//
//	PCC:<type 1 hex>[,<type 2 hex>]   either part may be empty
//	OBSERVATIONS:<limit> | OBSERVATIONS:since:<unix seconds>
//	DEVICECLASS[:<name or descriptor path>]
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	parts := strings.SplitN(text, ":", 2)

	cmd := &Command{
		Type: strings.ToUpper(parts[0]),
		Args: make(map[string]interface{}),
	}
	if cmd.Type == "" {
		return nil, fmt.Errorf("empty command")
	}

	var args string
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	switch cmd.Type {
	case CmdPCC:
		if args == "" {
			return nil, fmt.Errorf("PCC requires at least one header")
		}
		fields := strings.SplitN(args, ",", 2)
		for i, key := range []string{"type1", "type2"} {
			if i >= len(fields) || strings.TrimSpace(fields[i]) == "" {
				continue
			}
			b, err := hex.DecodeString(strings.TrimSpace(fields[i]))
			if err != nil {
				return nil, fmt.Errorf("invalid %s header: %w", key, err)
			}
			cmd.Args[key] = b
		}
		if len(cmd.Args) == 0 {
			return nil, fmt.Errorf("PCC requires at least one header")
		}

	case CmdObservations:
		if args == "" {
			break
		}
		if strings.HasPrefix(args, "since:") {
			cmd.Args["since"] = strings.TrimPrefix(args, "since:")
		} else {
			cmd.Args["limit"] = args
		}

	case CmdDeviceClass:
		if args != "" {
			cmd.Args["name"] = args
		}
	}

	return cmd, nil
}

// String converts a Response to a JSON string
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// Protocol commands
const (
	CmdStatus       = "STATUS"
	CmdPing         = "PING"
	CmdPCC          = "PCC"
	CmdObservations = "OBSERVATIONS"
	CmdDeviceClass  = "DEVICECLASS"
	CmdScan         = "SCAN"
	CmdQuit         = "QUIT"
)
