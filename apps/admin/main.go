package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/ja-viss/caipa-connect-sub000/core"
	"github.com/ja-viss/caipa-connect-sub000/storage/database/inmemdb"
	"github.com/ja-viss/caipa-connect-sub000/storage/database/mongodb"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conf, err := core.NewConfig()
	if err != nil {
		logger.Print(err)
		return 1
	}

	cli := commandLine{out: os.Stdout}
	switch conf.Database.Engine {
	case core.EngineMemory:
		cli.store = inmemdb.NewStore(inmemdb.Open())
	default:
		db, err := mongodb.Open(ctx, conf)
		if err != nil {
			logger.Print(err)
			return 1
		}
		defer func() {
			if err := db.Close(context.Background()); err != nil {
				logger.Print(err)
			}
		}()
		cli.store, cli.indexer = mongodb.NewStore(db), db
	}

	if err := cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			logger.Printf("error: %s", err)
		}
		return 1
	}
	return 0
}

