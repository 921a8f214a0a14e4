// booking-sim exercises a running booking service end to end: it mints an
// anonymous identity, fetches the slot grid for a date, books the first
// available slot, and prints the confirmation. Useful for smoke-testing a
// fresh deployment.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		baseURL = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "booking service base url")
		date    = flag.String("date", getenv("DATE", time.Now().AddDate(0, 0, 1).Format("2006-01-02")), "date to book (YYYY-MM-DD)")
		name    = flag.String("name", getenv("SUBJECT_NAME", "Smoke Test"), "subject name")
		age     = flag.Int("age", 30, "subject age")
	)
	flag.Parse()

	base := strings.TrimRight(*baseURL, "/")

	var identity struct {
		OwnerKey string `json:"owner_key"`
		Token    string `json:"token"`
	}
	if err := post(base+"/api/v1/identity", "", nil, &identity); err != nil {
		fatal("mint identity: " + err.Error())
	}
	fmt.Printf("identity %s\n", identity.OwnerKey)

	var slots []struct {
		Session string `json:"session"`
		Time    string `json:"time"`
		Label   string `json:"label"`
		Status  string `json:"status"`
	}
	if err := get(base+"/api/v1/slots?date="+*date, &slots); err != nil {
		fatal("fetch slots: " + err.Error())
	}

	pick := ""
	for _, s := range slots {
		fmt.Printf("  %-8s %s  %s\n", s.Session, s.Label, s.Status)
		if pick == "" && s.Status == "available" {
			pick = s.Time
		}
	}
	if pick == "" {
		fatal("no available slot on " + *date)
	}

	var booked struct {
		AppointmentID string `json:"appointment_id"`
		Date          string `json:"date"`
		Time          string `json:"time"`
		Serial        int    `json:"serial"`
	}
	body := map[string]any{
		"subject_name": *name,
		"subject_age":  *age,
		"date":         *date,
		"time":         pick,
	}
	if err := post(base+"/api/v1/book", identity.Token, body, &booked); err != nil {
		fatal("book: " + err.Error())
	}
	fmt.Printf("booked %s %s %s serial %d\n", booked.AppointmentID, booked.Date, booked.Time, booked.Serial)
}

func get(url string, out any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func post(url, token string, body, out any) error {
	payload := []byte("{}")
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	return decode(resp, out)
}

func decode(resp *http.Response, out any) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
