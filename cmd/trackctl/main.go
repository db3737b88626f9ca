// Command trackctl drives a running tracker over its control API.
//
//	trackctl [-addr http://host:8090] status|start|stop|toggle|screenshot|quit|summary
//	trackctl threshold 0.6
//	trackctl classes person car
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ErihKoh/video-detecting-and-tracking/internal/control"
	"github.com/ErihKoh/video-detecting-and-tracking/internal/httputil"
)

var (
	addr    = flag.String("addr", "http://localhost:8090", "Tracker control API base URL")
	timeout = flag.Duration("timeout", 10*time.Second, "Request timeout")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <command> [args]\n\ncommands: status start stop toggle screenshot quit summary threshold <v> classes [names...]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	client := control.NewClient(httputil.NewStandardClient(*timeout), *addr)
	out, err := dispatch(context.Background(), client, flag.Arg(0), flag.Args()[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if out != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(out)
	}
}

func dispatch(ctx context.Context, c *control.Client, cmd string, args []string) (interface{}, error) {
	switch cmd {
	case "status":
		return c.Status(ctx)
	case "start":
		return c.StartRecording(ctx)
	case "stop":
		return c.StopRecording(ctx)
	case "toggle":
		return c.ToggleRecording(ctx)
	case "screenshot":
		return c.TakeScreenshot(ctx)
	case "summary":
		return c.Summary(ctx)
	case "quit":
		return nil, c.Quit(ctx)
	case "threshold":
		if len(args) != 1 {
			return nil, fmt.Errorf("threshold takes one value")
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold %q: %w", args[0], err)
		}
		return c.SetConfidenceThreshold(ctx, v)
	case "classes":
		return c.SetAllowedClasses(ctx, args)
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}
