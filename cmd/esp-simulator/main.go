// Command esp-simulator impersonates the ESP8266: it POSTs synthetic
// photodiode and laser fields to the ingest server on an interval.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

func main() {
	var (
		endpoint  = flag.String("endpoint", "http://127.0.0.1:5176/api/sensor-data", "Ingest endpoint URL")
		interval  = flag.Duration("interval", 10*time.Second, "Interval between pushes")
		withStamp = flag.Bool("timestamp", true, "Include an epoch timestamp field")
	)
	flag.Parse()

	log.Printf("ESP simulator pushing to %s every %v", *endpoint, *interval)

	client := &http.Client{Timeout: 10 * time.Second}
	for {
		form := generateForm(*withStamp)
		resp, err := client.PostForm(*endpoint, form)
		if err != nil {
			log.Printf("push failed: %v", err)
		} else {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			log.Printf("%d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		time.Sleep(*interval)
	}
}

func generateForm(withStamp bool) url.Values {
	form := url.Values{}
	for i := 1; i <= 5; i++ {
		form.Set(fmt.Sprintf("P%d", i), fmt.Sprintf("%.4f", 0.5+rand.Float64()))
	}
	for _, name := range []string{"X1", "X2", "Y1", "Y2", "Z1", "Z2", "D1", "D2"} {
		form.Set(name, fmt.Sprintf("%.4f", 10+rand.Float64()*5))
	}
	if withStamp {
		form.Set("timestamp", fmt.Sprintf("%d", time.Now().Unix()))
	}
	return form
}
