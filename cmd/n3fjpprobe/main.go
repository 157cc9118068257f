// Command n3fjpprobe sends one command to an N3FJP logger and prints what came
// back: byte count, detected framing, marker presence and the parsed records.
// Useful when a logger version changes its LIST output.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"scoreboard/n3fjp"
)

func main() {
	host := flag.String("host", "127.0.0.1", "N3FJP API host")
	port := flag.Int("port", n3fjp.DefaultPort, "N3FJP API port")
	transport := flag.String("transport", n3fjp.TransportNative, "native or telnet")
	count := flag.Int("n", 10, "number of recent contacts to LIST")
	raw := flag.String("cmd", "", "send this raw command instead of LIST")
	total := flag.Duration("total", 8*time.Second, "total read timeout")
	idle := flag.Duration("idle", 750*time.Millisecond, "idle gap that ends the response")
	dump := flag.Bool("dump", false, "print the raw response text")
	maxRecords := flag.Int("max", 5, "records to print (0 = all)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := n3fjp.NewClient(*host, *port, *transport, 0)
	cmd := strings.TrimSpace(*raw)
	if cmd == "" {
		cmd = n3fjp.BuildListCommand(*count, true)
	}
	fmt.Printf("-> %s via %s: %s\n", client.Addr(), client.Transport(), cmd)

	start := time.Now()
	body, err := client.Command(ctx, cmd, *total, *idle)
	if err != nil {
		fmt.Fprintf(os.Stderr, "command failed after %s: %v\n", time.Since(start).Round(time.Millisecond), err)
		os.Exit(1)
	}
	text := strings.ToValidUTF8(string(body), "")
	open, closed := n3fjp.HasMarkers(text)
	fmt.Printf("<- %s in %s\n", humanize.Bytes(uint64(len(body))), time.Since(start).Round(time.Millisecond))
	fmt.Printf("framing=%s open_marker=%t close_marker=%t\n", n3fjp.DetectFraming(text), open, closed)
	if *dump {
		fmt.Println(text)
	}

	records := n3fjp.ParseRecords(text)
	fmt.Printf("records=%d\n", len(records))
	for i, rec := range records {
		if *maxRecords > 0 && i >= *maxRecords {
			fmt.Printf("... %d more\n", len(records)-i)
			break
		}
		c := n3fjp.DecodeContact(rec)
		fmt.Printf("[%d] key=%s call=%s band=%s mode=%s op=%s section=%s %s %s (%d tags)\n",
			i, c.PrimaryKey, c.Call, c.Band, c.Mode, c.Operator, c.Section, c.Date, c.TimeOn, rec.Len())
		if i == 0 {
			fmt.Printf("    tags: %s\n", strings.Join(rec.Tags(), ","))
		}
	}
}
