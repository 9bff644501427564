package client

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/dougsko/nrfd/pkg/firmware"
	"github.com/dougsko/nrfd/pkg/phy"
	"github.com/dougsko/nrfd/pkg/protocol"
	"github.com/dougsko/nrfd/pkg/rdc"
)

// SocketClient represents a client connection to the engine
type SocketClient struct {
	socketPath string
	timeout    time.Duration
}

// NewSocketClient creates a new socket client
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// SendCommand sends a command and returns the response
func (c *SocketClient) SendCommand(cmd string) (*protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return nil, fmt.Errorf("no response received")
	}

	var response protocol.Response
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &response, nil
}

// call sends cmd and decodes Data[key] into out
func (c *SocketClient) call(cmd, key string, out interface{}) error {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s error: %s", cmd, resp.Error)
	}
	if out == nil {
		return nil
	}

	data, ok := resp.Data[key]
	if !ok {
		return fmt.Errorf("%s not found in response", key)
	}

	// Convert to JSON and back to parse properly
	raw, _ := json.Marshal(data)
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

// GetStatus gets the current daemon status
func (c *SocketClient) GetStatus() (*protocol.Status, error) {
	var status protocol.Status
	if err := c.call(protocol.CmdStatus, "status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetObservations gets recent observations, newest first
func (c *SocketClient) GetObservations(limit int) ([]firmware.Observation, error) {
	cmd := protocol.CmdObservations
	if limit > 0 {
		cmd = fmt.Sprintf("%s:%d", protocol.CmdObservations, limit)
	}

	var observations []firmware.Observation
	if err := c.call(cmd, "observations", &observations); err != nil {
		return nil, err
	}
	return observations, nil
}

// InjectPCC submits raw PLCF headers as one received packet. Either may be
// nil.
func (c *SocketClient) InjectPCC(type1, type2 []byte) error {
	cmd := fmt.Sprintf("%s:%s,%s", protocol.CmdPCC, hex.EncodeToString(type1), hex.EncodeToString(type2))
	return c.call(cmd, "", nil)
}

// GetDeviceClass resolves a device class on the daemon; an empty name
// returns the configured class.
func (c *SocketClient) GetDeviceClass(name string) (*rdc.RadioDeviceClass, error) {
	cmd := protocol.CmdDeviceClass
	if name != "" {
		cmd += ":" + name
	}

	var dc rdc.RadioDeviceClass
	if err := c.call(cmd, "device_class", &dc); err != nil {
		return nil, err
	}
	return &dc, nil
}

// Scan measures the tuned channel
func (c *SocketClient) Scan() (*phy.ChannelScan, error) {
	var scan phy.ChannelScan
	if err := c.call(protocol.CmdScan, "scan", &scan); err != nil {
		return nil, err
	}
	return &scan, nil
}

// Ping tests the connection
func (c *SocketClient) Ping() error {
	return c.call(protocol.CmdPing, "", nil)
}

// IsConnected tests if the daemon is reachable
func (c *SocketClient) IsConnected() bool {
	return c.Ping() == nil
}
