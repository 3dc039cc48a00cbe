// Command airfrogd runs the airfrog probe daemon: it opens a Pin Driver,
// starts the link task and the keepalive/auto-connect tickers, and serves
// the binary wire protocol and the REST API concurrently.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/airfrog/airfrog/internal/config"
	"github.com/airfrog/airfrog/internal/pindrv"
	"github.com/airfrog/airfrog/internal/restapi"
	"github.com/airfrog/airfrog/internal/runtime"
	"github.com/airfrog/airfrog/internal/swd/link"
	"github.com/airfrog/airfrog/internal/target"
	"github.com/airfrog/airfrog/internal/wire"
)

var DEFAULT_PIN_DRIVER = "sim"
var DEFAULT_BOOTSTRAP_PATH = "/etc/airfrog/airfrog.ini"
var DEFAULT_REST_PORT = 8080

func init() {
	pindrv.Register("sim", func() (pindrv.Driver, error) {
		return pindrv.NewSim(0x2BA01477, 0x24770011), nil
	})
}

func main() {
	driverName := flag.String("driver", DEFAULT_PIN_DRIVER, "registered pin driver name e.g. sim")
	bootstrapPath := flag.String("config", DEFAULT_BOOTSTRAP_PATH, "bootstrap ini file for first-boot defaults")
	restPort := flag.Int("rest-port", DEFAULT_REST_PORT, "REST/HTTP listen port")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	drv, err := pindrv.Open(*driverName)
	if err != nil {
		log.Fatalf("[MAIN] opening pin driver %q: %v", *driverName, err)
	}

	swdDefaults, netDefaults := config.LoadBootstrap(*bootstrapPath)

	l := link.New(drv)
	if err := l.SetSpeed(swdDefaults.Speed); err != nil {
		log.Warnf("[MAIN] applying bootstrap speed: %v", err)
	}
	svc := target.New(l)
	if err := svc.SetSpeed(swdDefaults.Speed); err != nil {
		log.Warnf("[MAIN] applying bootstrap speed to service: %v", err)
	}

	rt := runtime.New(svc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go rt.RunLinkTask(ctx)
	if swdDefaults.Keepalive {
		go rt.RunKeepaliveTask(ctx)
	}
	if swdDefaults.AutoConnect {
		go rt.RunAutoConnectTask(ctx)
	}

	wireSrv := wire.NewServer(rt)
	go func() {
		if err := wireSrv.ListenAndServe(ctx, wire.DefaultAddr); err != nil {
			log.Errorf("[MAIN] wire server stopped: %v", err)
		}
	}()

	restSrv := restapi.NewServer(ctx, rt)
	restAddr := fmt.Sprintf(":%d", *restPort)
	go func() {
		if err := restSrv.ListenAndServe(restAddr); err != nil {
			log.Errorf("[MAIN] REST server stopped: %v", err)
		}
	}()

	log.Infof("[MAIN] airfrogd up: wire=%s rest=%s network=%q", wire.DefaultAddr, restAddr, netDefaults.SSID)
	<-ctx.Done()
	log.Infof("[MAIN] shutting down: %v", ctx.Err())
}
