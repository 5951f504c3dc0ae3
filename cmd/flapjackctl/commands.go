package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
)

var eventCommand = &cli.Command{
	Name:      "event",
	Usage:     "submits a check result event",
	ArgsUsage: "<entity> <state> <summary>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "check", Usage: "sub-check identifier"},
		&cli.StringFlag{Name: "type", Value: "service", Usage: "event type (service|metric)"},
		&cli.Int64Flag{Name: "time", Usage: "event unix time; defaults to now"},
		&cli.StringSliceFlag{Name: "tag", Usage: "tag override, repeatable"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return cli.ShowSubcommandHelp(c)
		}
		at := c.Int64("time")
		if at == 0 {
			at = time.Now().Unix()
		}
		body := map[string]interface{}{
			"entity":  c.Args().Get(0),
			"state":   c.Args().Get(1),
			"summary": c.Args().Get(2),
			"type":    c.String("type"),
			"time":    at,
		}
		if check := c.String("check"); check != "" {
			body["check"] = check
		}
		if tags := c.StringSlice("tag"); len(tags) != 0 {
			body["tags"] = tags
		}
		return call(http.MethodPost, "/events", body)
	},
}

var stateCommand = &cli.Command{
	Name:      "state",
	Usage:     "shows a check's current state and maintenance status",
	ArgsUsage: "<check_id>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.ShowSubcommandHelp(c)
		}
		return call(http.MethodGet, "/checks/"+c.Args().First(), nil)
	},
}

var acknowledgeCommand = &cli.Command{
	Name:      "ack",
	Usage:     "acknowledges a failing check, opening an unscheduled maintenance window",
	ArgsUsage: "<check_id>",
	Flags: []cli.Flag{
		&cli.Int64Flag{Name: "duration", Value: 3600, Usage: "window length in seconds"},
		&cli.StringFlag{Name: "summary", Usage: "reason for the acknowledgement"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.ShowSubcommandHelp(c)
		}
		return call(http.MethodPost, "/checks/"+c.Args().First()+"/acknowledgements", map[string]interface{}{
			"duration": c.Int64("duration"),
			"summary":  c.String("summary"),
		})
	},
}

var maintenanceCommand = &cli.Command{
	Name:  "maintenance",
	Usage: "manages scheduled maintenance windows",
	Subcommands: []*cli.Command{
		{
			Name:      "schedule",
			Usage:     "declares a scheduled maintenance window",
			ArgsUsage: "<check_id>",
			Flags: []cli.Flag{
				&cli.Int64Flag{Name: "start", Usage: "window start unix time", Required: true},
				&cli.Int64Flag{Name: "end", Usage: "window end unix time", Required: true},
				&cli.StringFlag{Name: "summary", Usage: "reason for the window"},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() != 1 {
					return cli.ShowSubcommandHelp(c)
				}
				return call(http.MethodPost, "/checks/"+c.Args().First()+"/scheduled_maintenances", map[string]interface{}{
					"start_time": c.Int64("start"),
					"end_time":   c.Int64("end"),
					"summary":    c.String("summary"),
				})
			},
		},
		{
			Name:      "end",
			Usage:     "ends or deletes a scheduled maintenance window",
			ArgsUsage: "<check_id> <window_id>",
			Flags: []cli.Flag{
				&cli.Int64Flag{Name: "at", Usage: "truncation unix time; defaults to now"},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() != 2 {
					return cli.ShowSubcommandHelp(c)
				}
				path := fmt.Sprintf("/checks/%s/scheduled_maintenances/%s",
					c.Args().Get(0), c.Args().Get(1))
				if at := c.Int64("at"); at != 0 {
					path = fmt.Sprintf("%s?at=%d", path, at)
				}
				return call(http.MethodDelete, path, nil)
			},
		},
	},
}

var testNotificationCommand = &cli.Command{
	Name:      "test",
	Usage:     "sends a test notification through a check's routes",
	ArgsUsage: "<check_id>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "contact", Usage: "restrict delivery to one contact id"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.ShowSubcommandHelp(c)
		}
		return call(http.MethodPost, "/checks/"+c.Args().First()+"/test_notifications", map[string]interface{}{
			"contact_id": c.String("contact"),
		})
	},
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "shows subsystem health and pipeline counters",
	Action: func(c *cli.Context) error {
		return call(http.MethodGet, "/status", nil)
	},
}
