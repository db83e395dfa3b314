package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/chirpnet/db"
	"github.com/deemkeen/chirpnet/federation"
	"github.com/deemkeen/chirpnet/util"
	"github.com/deemkeen/chirpnet/visibility"
	"github.com/deemkeen/chirpnet/web"
)

func main() {
	conf, err := util.ReadConf()
	if err != nil {
		log.Fatal("could not read configuration", "err", err)
	}

	log.SetTimeFormat(time.Kitchen)
	log.Info("starting", "app", util.GetNameAndVersion(), "node", conf.Conf.NodeName)
	log.Debug("configuration", "conf", util.PrettyPrint(conf))

	database := db.MustInit(util.ResolveFilePath(conf.Conf.DbFile))
	defer database.Close()

	client := federation.NewNodeClient(database)
	defer client.Close()

	identity := federation.NewIdentity(conf, database)
	engine := federation.NewEngine(conf, database, client)
	dispatcher := federation.NewDispatcher(conf, database, identity, engine)
	syncer := federation.NewSyncer(conf, database, client, dispatcher)

	cronJob := syncer.Schedule()

	server := web.NewServer(conf, database, visibility.NewResolver(database), engine, dispatcher, syncer)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort),
		Handler: server.Router(),
	}

	go func() {
		log.Info("serving http", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", "err", err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	log.Info("shutting down")
	if cronJob != nil {
		cronJob.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Drain in-flight federation deliveries before the db closes
	engine.Wait()
	log.Info("bye")
}
