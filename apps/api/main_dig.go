package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux

	"go.uber.org/dig"

	dig_container "github.com/avamec/salas/apps/api/di/dig"
	echoapi "github.com/avamec/salas/apps/api/echo"
	"github.com/avamec/salas/core"
)

// apiDeps is everything the API process pulls out of the container.
type apiDeps struct {
	dig.In

	Conf     *core.Config
	Logger   core.Logger
	DBLogger core.Logger `name:"dbLogger"`
	CloseDB  dig_container.DBCloser
	Server   *echoapi.Server
}

func startWithDig() {
	if err := dig_container.New().Invoke(run); err != nil {
		log.Fatal(err)
	}
}

// run serves the API until the server fails or the process is asked to stop.
func run(deps apiDeps) {
	logger := deps.Logger
	logger.Info(fmt.Sprintf("salas %q starting (store: %s)", deps.Conf.Build, deps.Conf.Database.Store))
	defer logger.Info("salas stopped")
	defer func() {
		if err := deps.CloseDB(); err != nil {
			deps.DBLogger.Fatal("closing session store", err)
		}
	}()

	serveDebug(deps.Conf, logger)
	go deps.Server.Start()

	select {
	case err := <-deps.Server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)
	case sig := <-deps.Server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v received, draining requests", sig))
		stop(deps.Server, deps.Conf, logger)
	}
}

// serveDebug publishes build info on /debug/vars and serves it with pprof on the debug host.
func serveDebug(conf *core.Config, logger core.Logger) {
	for name, value := range map[string]string{"build": conf.Build, "env": conf.Env, "store": conf.Database.Store} {
		expvar.NewString(name).Set(value)
	}
	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}

// stop gives in-flight requests until the shutdown timeout, then forces the listener closed.
func stop(server *echoapi.Server, conf *core.Config, logger core.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	if err == nil {
		return
	}
	logger.Error(fmt.Sprintf("graceful shutdown failed: %v", err), err)
	if err = server.Close(); err != nil {
		logger.Fatal(fmt.Sprintf("forced shutdown failed: %v", err), err)
	}
}
