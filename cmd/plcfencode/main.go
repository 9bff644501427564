package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/dougsko/nrfd/pkg/plcf"
)

type options struct {
	kind        string
	transmitter uint
	network     uint
	receiver    uint
	power       uint
	mcs         uint
	length      uint
	harq        uint
}

func main() {
	var opts options
	flag.StringVar(&opts.kind, "type", "10", "PLCF type (10, 20 or 21)")
	flag.UintVar(&opts.transmitter, "tx", 0, "Transmitter identity (short RD ID)")
	flag.UintVar(&opts.network, "snid", 0, "Short network ID")
	flag.UintVar(&opts.receiver, "rx", 0, "Receiver identity (type 2 only)")
	flag.UintVar(&opts.power, "power", 0, "Transmit power index (0-15)")
	flag.UintVar(&opts.mcs, "mcs", 0, "DF MCS index")
	flag.UintVar(&opts.length, "len", 0, "Packet length (0-15)")
	flag.UintVar(&opts.harq, "harq", 0, "HARQ process number (type 20 only)")
	decode := flag.String("decode", "", "Decode a hex PLCF instead of encoding (type 1 or 2 by length)")
	flag.Parse()

	if *decode != "" {
		if err := decodeHex(*decode); err != nil {
			fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	rec, err := buildRecord(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid fields: %v\n", err)
		flag.PrintDefaults()
		os.Exit(1)
	}

	b, err := plcf.Pack(rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encoding failed: %v\n", err)
		os.Exit(1)
	}

	encoded := hex.EncodeToString(b)
	fmt.Printf("Encoding PLCF Type %s\n", opts.kind)
	fmt.Printf("====================\n")
	describe(rec)
	fmt.Printf("\nHex:      %s (%d bytes)\n", encoded, len(b))
	if rec.HeaderType() == plcf.Type1 {
		fmt.Printf("Inject:   nrfctl PCC:%s\n", encoded)
	} else {
		fmt.Printf("Inject:   nrfctl PCC:,%s\n", encoded)
	}
}

// buildRecord range-checks the identity fields that plcf.Pack cannot see
// through the narrow struct types.
func buildRecord(o options) (plcf.Record, error) {
	switch {
	case o.transmitter > 0xFFFF:
		return nil, fmt.Errorf("tx %d exceeds 16 bits", o.transmitter)
	case o.receiver > 0xFFFF:
		return nil, fmt.Errorf("rx %d exceeds 16 bits", o.receiver)
	case o.network > 0xFF:
		return nil, fmt.Errorf("snid %d exceeds 8 bits", o.network)
	case o.power > 0xFF || o.mcs > 0xFF || o.length > 0xFF || o.harq > 0xFF:
		return nil, fmt.Errorf("field exceeds 8 bits")
	}

	fields := plcf.Type2Fields{
		PacketLength:        uint8(o.length),
		ShortNetworkID:      uint8(o.network),
		TransmitterIdentity: uint16(o.transmitter),
		TransmitPower:       uint8(o.power),
		DFMCS:               uint8(o.mcs),
		ReceiverIdentity:    uint16(o.receiver),
	}

	switch o.kind {
	case "10":
		return &plcf.Type10{
			PacketLength:        fields.PacketLength,
			ShortNetworkID:      fields.ShortNetworkID,
			TransmitterIdentity: fields.TransmitterIdentity,
			TransmitPower:       fields.TransmitPower,
			DFMCS:               fields.DFMCS,
		}, nil
	case "20":
		return &plcf.Type20{Type2Fields: fields, DFHARQProcessNumber: uint8(o.harq)}, nil
	case "21":
		return &plcf.Type21{Type2Fields: fields}, nil
	default:
		return nil, fmt.Errorf("unknown PLCF type %q", o.kind)
	}
}

func decodeHex(s string) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}

	headerType := plcf.Type1
	if len(b) >= plcf.Type2Size {
		headerType = plcf.Type2
	}
	rec, err := plcf.Unpack(headerType, b)
	if err != nil {
		return err
	}

	fmt.Printf("Decoding PLCF (header type %d, format %d)\n", rec.HeaderType(), rec.HeaderFormat())
	fmt.Printf("====================\n")
	describe(rec)
	return nil
}

func describe(rec plcf.Record) {
	switch p := rec.(type) {
	case *plcf.Type10:
		fmt.Printf("Type:        10\n")
		fmt.Printf("Transmitter: %d (0x%04X)\n", p.TransmitterIdentity, p.TransmitterIdentity)
		fmt.Printf("Network:     %d (0x%02X)\n", p.ShortNetworkID, p.ShortNetworkID)
		fmt.Printf("Power:       %d\n", p.TransmitPower)
		fmt.Printf("MCS:         %d\n", p.DFMCS)
	case *plcf.Type20:
		describeType2("20", &p.Type2Fields)
		fmt.Printf("HARQ:        process %d, RV %d, NDI %d\n", p.DFHARQProcessNumber, p.DFRedundancyVersion, p.DFNewDataIndication)
	case *plcf.Type21:
		describeType2("21", &p.Type2Fields)
	case *plcf.Unrecognized:
		fmt.Printf("Unrecognized: header type %d format %d\n", p.Type, p.Format)
	}
}

func describeType2(label string, f *plcf.Type2Fields) {
	fmt.Printf("Type:        %s\n", label)
	fmt.Printf("Transmitter: %d (0x%04X)\n", f.TransmitterIdentity, f.TransmitterIdentity)
	fmt.Printf("Receiver:    %d (0x%04X)\n", f.ReceiverIdentity, f.ReceiverIdentity)
	fmt.Printf("Network:     %d (0x%02X)\n", f.ShortNetworkID, f.ShortNetworkID)
	fmt.Printf("Power:       %d\n", f.TransmitPower)
	fmt.Printf("MCS:         %d\n", f.DFMCS)
}
