package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

var (
	host    string
	timeout time.Duration
)

const defaultTimeout = 30 * time.Second

func jsonOutput(in interface{}) {
	j, err := json.MarshalIndent(in, "", " ")
	if err != nil {
		return
	}
	fmt.Println(string(j))
}

// call performs one admin API request and prints the decoded response
func call(method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, "http://"+host+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var decoded interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		return err
	}
	jsonOutput(decoded)
	if resp.StatusCode >= http.StatusBadRequest {
		return cli.Exit(fmt.Sprintf("request failed: %s", resp.Status), 1)
	}
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "flapjackctl"
	app.Usage = "command line interface for the flapjack admin API"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "host",
			Value:       "localhost:3081",
			Usage:       "address of the flapjack admin API",
			Destination: &host,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Value:       defaultTimeout,
			Usage:       "request timeout",
			Destination: &timeout,
		},
	}
	app.Commands = []*cli.Command{
		eventCommand,
		stateCommand,
		acknowledgeCommand,
		maintenanceCommand,
		testNotificationCommand,
		statusCommand,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
