package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"

	"kgeyst.com/cardreader/pkg/cardreader/api"
	"kgeyst.com/cardreader/pkg/cardreader/infrastructure/webform"
	"kgeyst.com/cardreader/pkg/common"
)

func main() {
	log.SetHandler(cli.New(os.Stderr))
	err := mainImpl()
	if err != nil {
		log.WithError(err).Fatal("web form failed")
	}
}

func mainImpl() error {
	config, err := common.LoadConfig("config.yaml")
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cardReader, err := api.NewAPI(config)
	if err != nil {
		return err
	}
	err = cardReader.CheckPrerequisites(ctx)
	if err != nil {
		return err
	}
	logger := common.NewFileLogger(config.GetStringOrDefault(api.ConfigKeyLogPath, "log.txt"))
	server := webform.NewServer(cardReader, logger)
	address := config.GetStringOrDefault(webform.ConfigKeyWebListenAddress, ":7860")
	log.Infof("model: %s", cardReader.ModelName())
	log.Infof("listening on %s", address)
	err = server.Run(ctx, address)
	if err != nil {
		return err
	}
	log.Info("shut down")
	return nil
}
