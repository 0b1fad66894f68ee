/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package main is an OSC router: it reads packets from a coupling,
// dispatches them to the configured methods, and writes what happens.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Comcast/oscroute/dispatch"
	"github.com/Comcast/oscroute/sio"
	"github.com/Comcast/oscroute/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {

	var (
		coupling   = flag.String("io", "std", `IO protocol: "std", "udp", "mq", or "ws"`)
		confFile   = flag.String("config", "", "Optional router configuration (YAML) filename")
		cacheLimit = flag.Int("cache-limit", -1, "Pattern cache limit (overrides config when not negative)")
		metrics    = flag.String("metrics", "", "Optional host:port to serve Prometheus metrics")
		routesHTML = flag.String("routes-html", "", "Write an HTML description of the routes to this file and exit")

		record   = flag.String("record", "", "Optional capture database filename")
		replay   = flag.String("replay", "", "Replay this session from the -record database")
		sessions = flag.Bool("sessions", false, "List sessions in the -record database and exit")

		wait      = flag.Duration("wait", time.Second, "Wait this long before shutting down couplings")
		haltOnEOF = flag.Bool("halt-on-eof", false, "Stop on input EOF")
		verbose   = flag.Bool("v", false, "Verbose")
		help      = flag.Bool("h", false, "Get usage")
	)

	flag.Parse()

	if *help {
		flag.PrintDefaults()

		{
			fmt.Fprintf(os.Stderr, "\n-io std (default):\n\n")
			_, fs := NewStdCouplings(nil)
			fs.PrintDefaults()
		}

		{
			fmt.Fprintf(os.Stderr, "\n-io udp:\n\n")
			_, fs := NewUDPCouplings(nil)
			fs.PrintDefaults()
		}

		{
			fmt.Fprintf(os.Stderr, "\n-io mq:\n\n")
			_, fs := NewMQTTCouplings(nil)
			fs.PrintDefaults()
		}

		{
			fmt.Fprintf(os.Stderr, "\n-io ws:\n\n")
			_, fs := NewWebSocketCouplings(nil)
			fs.PrintDefaults()
		}

		os.Exit(0)
	}

	util.Logging = *verbose

	conf := &sio.Conf{}
	if *confFile != "" {
		c, err := sio.ReadConf(*confFile)
		if err != nil {
			log.Fatal(err)
		}
		conf = c
	}

	if *routesHTML != "" {
		f, err := os.Create(*routesHTML)
		if err != nil {
			log.Fatal(err)
		}
		if err = sio.RenderRoutesHTML(conf, f); err != nil {
			log.Fatal(err)
		}
		if err = f.Close(); err != nil {
			log.Fatal(err)
		}
		return
	}

	var capture *sio.Capture
	if *record != "" {
		capture = sio.NewCapture(*record)
		capture.Debug = *verbose
		if err := capture.Open(); err != nil {
			log.Fatal(err)
		}
		defer capture.Close()
	} else if *replay != "" || *sessions {
		log.Fatal("-replay and -sessions need -record")
	}

	if *sessions {
		ss, err := capture.Sessions()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(sio.JSON(ss))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cio sio.Couplings
	switch *coupling {
	case "std":
		c, _ := NewStdCouplings(flag.Args())
		if *replay != "" {
			c.In = strings.NewReader("")
		}
		cio = c
	case "udp":
		c, _ := NewUDPCouplings(flag.Args())
		c.Verbose = *verbose
		cio = c
	case "mq", "mqtt":
		c, _ := NewMQTTCouplings(flag.Args())
		cio = c
	case "ws":
		c, _ := NewWebSocketCouplings(flag.Args())
		cio = c
	default:
		log.Fatalf("unknown io: '%s'", *coupling)
	}

	limit := conf.CacheLimit
	if 0 <= *cacheLimit {
		limit = *cacheLimit
	}

	opts := []dispatch.Option{
		dispatch.WithCacheLimit(limit),
	}
	if *metrics != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, dispatch.WithMetrics(dispatch.NewPrometheusMetrics(reg)))
		go serveMetrics(*metrics, reg)
	}
	if *verbose {
		opts = append(opts, dispatch.WithLogf(log.Printf))
	}

	d, err := dispatch.New(opts...)
	if err != nil {
		log.Fatal(err)
	}

	if err := cio.Start(ctx); err != nil {
		log.Fatal(err)
	}

	r, err := sio.NewRouter(ctx, d, cio)
	if err != nil {
		log.Fatal(err)
	}
	r.Verbose = *verbose
	r.HaltOnInputEOF = *haltOnEOF

	if err = conf.Configure(r); err != nil {
		log.Fatal(err)
	}

	if *replay != "" {
		if err = r.Replay(ctx, capture, *replay); err != nil {
			log.Fatal(err)
		}
		time.Sleep(*wait)
		cancel()
		stop(cio)
		return
	}

	if capture != nil {
		session, err := capture.StartSession()
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("recording session %s", session)
		r.Recorder = capture
	}

	go func() {
		if std, is := cio.(*sio.Stdio); is && !*haltOnEOF {
			<-std.InputEOF
			log.Printf("input EOF (waiting %v)", *wait)
			time.Sleep(*wait)
			cancel()
		}
	}()

	if err := r.Loop(ctx); err != nil {
		log.Fatal(err)
	}

	if *haltOnEOF {
		time.Sleep(*wait)
		cancel()
	}

	stop(cio)
}

func stop(cio sio.Couplings) {
	if err := cio.Stop(context.Background()); err != nil {
		log.Printf("error from io.Stop: %v", err)
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Printf("serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics server: %s", err)
	}
}
