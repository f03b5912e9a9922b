package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/abiosoft/ishell/v2"
	"github.com/caarlos0/env/v6"

	"github.com/openrover/telerover/comms"
	"github.com/openrover/telerover/control"
	"github.com/openrover/telerover/recorder"
	"github.com/openrover/telerover/video"
)

var (
	ENV *EnvConfig
)

func init() {
	ENV = new(EnvConfig)
	env.Parse(ENV)
}

func main() {
	configPath := flag.String("config", ENV.CONFIG, "Path to the rover yaml config")
	apiAddr := flag.String("api", "127.0.0.1:7070", "Listen address for the diagnostics API")
	flag.Parse()

	config, err := LoadRoverConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Unable to read config: %v", err))
	}

	// env wins over file for host and token
	if ENV.HOST != "" {
		config.Host = ENV.HOST
	}
	if ENV.TOKEN != "" {
		config.Token = ENV.TOKEN
	}

	// trip log lives next to the binary unless pointed elsewhere
	tripPath := ENV.TRIPLOG
	if tripPath == "" {
		tripPath, _ = filepath.Abs("./tmp/trip.db")
		dir := filepath.Dir(tripPath)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			os.Mkdir(dir, 0755)
		}
	}
	trip, err := recorder.Open(tripPath)
	if err != nil {
		log.Printf("trip log unavailable: %v", err)
		trip = nil
	} else {
		defer trip.Close()
	}

	// command channel
	link := comms.NewLink(config.Token)
	if trip != nil {
		link.SetRecorder(trip)
	}

	// sustained command emission
	driver := control.NewDriver(func(dir string) error {
		return link.Send(comms.MoveCommand(dir))
	})
	gesture := control.NewGesture(driver, config.Gestures)

	// video feed
	sup := video.NewSupervisor(config.VideoURL())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	link.Connect(config.Host, config.CommandPort)

	// threshold tuning without restart
	if watcher, err := watchConfig(*configPath, func(c *RoverConfig) {
		gesture.SetConfig(c.Gestures)
	}); err != nil {
		log.Printf("config watch unavailable: %v", err)
	} else {
		defer watcher.Close()
	}

	// diagnostics API for the UI shell
	go func() {
		log.Printf("diagnostics API on %s", *apiAddr)
		if err := http.ListenAndServe(*apiAddr, apiRouter(link, driver, sup, trip)); err != nil {
			log.Fatal(err)
		}
	}()

	//---
	// Operator shell
	//---
	shell := ishell.New()
	shell.Println("telerover operator shell")
	shell.ShowPrompt(true)

	shell.AddCmd(&ishell.Cmd{
		Name: "connect",
		Help: "connect [host]",
		Func: func(c *ishell.Context) {
			if len(c.Args) >= 1 {
				config.Host = c.Args[0]
			}
			c.Printf("Connecting to %s:%d\n", config.Host, config.CommandPort)
			link.Connect(config.Host, config.CommandPort)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "disconnect",
		Help: "disconnect from the rover",
		Func: func(c *ishell.Context) {
			driver.Stop()
			link.Disconnect()
			c.Println("Disconnected")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "drive",
		Help: "drive <forward|backward|left|right>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: drive <direction>"))
				return
			}
			action, ok := control.ParseAction(c.Args[0])
			if !ok {
				c.Err(fmt.Errorf("unknown direction %q", c.Args[0]))
				return
			}
			c.Printf("Driving %s (dead-man's switch: run 'stop' to halt)\n", action)
			driver.Start(action)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "stop",
		Help: "stop the rover",
		Func: func(c *ishell.Context) {
			driver.Stop()
			c.Println("Stopped")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "tap",
		Help: "tap <x> <y> - inject a touch tap (two within the window drive backward)",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("usage: tap <x> <y>"))
				return
			}
			x, _ := strconv.ParseFloat(c.Args[0], 64)
			y, _ := strconv.ParseFloat(c.Args[1], 64)
			now := time.Now()
			gesture.PointerDown(x, y, now)
			gesture.PointerUp(now.Add(50 * time.Millisecond))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "show link, action and stream state",
		Func: func(c *ishell.Context) {
			stats := sup.Stats()
			c.Printf("link:    %s\n", link.State().Get())
			c.Printf("action:  %s\n", driver.Current().Get())
			c.Printf("stream:  connected=%v frames=%d dropped=%d reconnects=%d fps=%.1f\n",
				stats.Connected, stats.FramesDecoded, stats.FramesDropped, stats.Reconnects, stats.FPS)
			if errMsg := sup.LastError().Get(); errMsg != "" {
				c.Printf("stream error: %s\n", errMsg)
			}
			if last := link.LastMessage().Get().Raw; last != "" {
				c.Printf("last peer message: %s\n", last)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "log",
		Help: "log [n] - show the last n trip log events",
		Func: func(c *ishell.Context) {
			if trip == nil {
				c.Println("trip log unavailable")
				return
			}
			n := 20
			if len(c.Args) >= 1 {
				if v, err := strconv.Atoi(c.Args[0]); err == nil {
					n = v
				}
			}
			events, err := trip.Tail(n)
			if err != nil {
				c.Err(err)
				return
			}
			for _, e := range events {
				c.Printf("%s  %-8s %s\n", e.At.Format(time.RFC3339), e.Kind, e.Detail)
			}
		},
	})

	shell.Run()

	// shell exited; make sure the rover is not left moving
	driver.Stop()
	link.Disconnect()
}
