package main

import (
	"context"
	"time"

	"github.com/cppla/eduboard/config"
	"github.com/cppla/eduboard/objstore"
	"github.com/cppla/eduboard/realtime"
	"github.com/cppla/eduboard/routes"
	"github.com/cppla/eduboard/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	st := config.InitStore(utils.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	objects, err := objstore.New(ctx, objstore.Config{
		Provider:  cfg.StorageProvider,
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		UseSSL:    cfg.StorageUseSSL,
	})
	cancel()
	if err != nil {
		utils.Sugar.Fatalf("object storage init failed: %v", err)
	}

	sms, err := utils.NewSMSSender(cfg)
	if err != nil {
		utils.Sugar.Fatalf("sms gateway init failed: %v", err)
	}
	if cfg.SMSProvider == "log" {
		utils.Sugar.Warn("sms provider is 'log': verification codes are written to the log, not sent")
	}

	hub := realtime.NewHub(utils.Logger)
	r := routes.SetupRouter(routes.Deps{
		Store:   st,
		Objects: objects,
		SMS:     sms,
		Mailer:  utils.NewMailer(cfg),
		Hub:     hub,
	})

	srv := utils.NewGraceServer(":"+cfg.AppPort, r, utils.ServerOptions{
		OnDrain: []func(){hub.Close},
		OnStop:  []func(context.Context) error{
			func(context.Context) error { return st.Close() },
			utils.CloseRedis,
		},
	})
	if err := srv.Run(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
