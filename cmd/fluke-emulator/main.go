// Command fluke-emulator emulates a FLUKE 1620A thermo-hygrometer over TCP.
// It answers each READ? query with one measurement frame, so labmonitord can
// be pointed at it with hostname/port instead of a serial device.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"strings"
)

func main() {
	var (
		port     = flag.String("port", "9600", "TCP port to listen on")
		unitForm = flag.Bool("units", false, "Emit the unit-tagged frame form instead of bare values")
	)
	flag.Parse()

	log.Printf("FLUKE 1620A emulator listening on port %s", *port)

	listener, err := net.Listen("tcp", ":"+*port)
	if err != nil {
		log.Fatal("Failed to listen:", err)
	}
	defer listener.Close()

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("Failed to accept connection: %v", err)
			continue
		}

		log.Printf("Client connected from %s", conn.RemoteAddr())
		go handleConnection(conn, *unitForm)
	}
}

func handleConnection(conn net.Conn, unitForm bool) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		if !strings.EqualFold(cmd, "READ?") {
			continue
		}
		if _, err := fmt.Fprintf(conn, "%s\r\n", generateFrame(unitForm)); err != nil {
			log.Printf("Failed to send frame: %v", err)
			return
		}
	}
}

// generateFrame produces a plausible lab reading around 23 C / 45 %RH.
func generateFrame(unitForm bool) string {
	t1 := 23.0 + rand.Float64()
	h1 := 45.0 + rand.Float64()*2
	t2 := 23.2 + rand.Float64()
	h2 := 44.5 + rand.Float64()*2

	if unitForm {
		return fmt.Sprintf("1, %.2f C, 1, %.1f %%, 2, %.2f C, 2, %.1f %%", t1, h1, t2, h2)
	}
	return fmt.Sprintf("%.2f,%.1f,%.2f,%.1f", t1, h1, t2, h2)
}
