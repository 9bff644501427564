package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dougsko/nrfd/pkg/client"
	"github.com/dougsko/nrfd/pkg/rdc"
)

var (
	socketPath = flag.String("socket", "/tmp/nrfd.sock", "Unix socket path")
	command    = flag.String("cmd", "", "Command to send (e.g., 'STATUS', 'PCC:03AB123452')")
)

func main() {
	flag.Parse()

	if *socketPath == "" {
		fmt.Fprintf(os.Stderr, "Socket path is required\n")
		os.Exit(1)
	}

	// If no command specified, show interactive help
	if *command == "" {
		if len(flag.Args()) > 0 {
			*command = strings.Join(flag.Args(), " ")
		} else {
			showHelp()
			return
		}
	}

	// Device classes resolve locally; no daemon needed
	if args := strings.Fields(*command); len(args) > 0 && strings.EqualFold(args[0], "rdc") {
		if err := showDeviceClass(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Create socket client
	client := client.NewSocketClient(*socketPath)

	// Send command
	response, err := client.SendCommand(*command)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Print response
	fmt.Printf("%s\n", response.String())
	if !response.Success {
		os.Exit(1)
	}
}

// showDeviceClass prints one resolved class, or the catalog when no
// identifier is given.
func showDeviceClass(args []string) error {
	if len(args) == 0 {
		for _, name := range rdc.Names() {
			dc, _ := rdc.Lookup(name)
			fmt.Println(dc)
		}
		return nil
	}

	dc, err := rdc.Resolve(args[0])
	if err != nil {
		return err
	}
	fmt.Println(dc)
	fmt.Printf("  subcarrier spacing: %d Hz\n", dc.SubcarrierSpacing())
	fmt.Printf("  soft buffer:        %d bits\n", dc.NSoftMin)
	fmt.Printf("  HARQ processes:     %d (per connection %d)\n", dc.MDLHARQMin, dc.MConnectionDLHARQMin)
	fmt.Printf("  packet length:      %d\n", dc.PacketLengthMin)
	return nil
}

func showHelp() {
	fmt.Println("nrfctl - DECT NR+ Firmware Daemon Control Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options] <command>\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -socket <path>    Unix socket path (default: /tmp/nrfd.sock)")
	fmt.Println("  -cmd <command>    Command to send")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  STATUS                    Get daemon status")
	fmt.Println("  OBSERVATIONS              Get recent observations")
	fmt.Println("  OBSERVATIONS:10           Get last 10 observations")
	fmt.Println("  OBSERVATIONS:since:<unix> Get observations since a unix time")
	fmt.Println("  PCC:<hex1>[,<hex2>]       Inject a received PLCF (type 1 and/or type 2)")
	fmt.Println("  DEVICECLASS[:<name>]      Show the configured or a catalog device class")
	fmt.Println("  SCAN                      Measure the tuned channel")
	fmt.Println("  PING                      Test connection")
	fmt.Println("  rdc [<name|path>]         Resolve a device class locally")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s STATUS\n", os.Args[0])
	fmt.Printf("  %s PCC:03AB123452\n", os.Args[0])
	fmt.Printf("  %s PCC:,3F01BEEFA3CAFE402ABC\n", os.Args[0])
	fmt.Printf("  %s rdc 1.1.1.A\n", os.Args[0])
	fmt.Printf("  echo 'STATUS' | nc -U /tmp/nrfd.sock\n")
}
