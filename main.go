package main

import (
	"context"

	"github.com/sirupsen/logrus"

	"messenger-service/config"
	"messenger-service/controllers"
	"messenger-service/models"
	"messenger-service/realtime"
	"messenger-service/repositories"
	"messenger-service/routes"
	"messenger-service/services"
)

func main() {
	config.Load()

	db, err := config.InitDB()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect database")
	}
	if err := models.Migrate(db); err != nil {
		logrus.WithError(err).Fatal("Failed to migrate schema")
	}

	users := repositories.NewGormUserRepository(db)
	conversations := repositories.NewGormConversationRepository(db)
	messages := repositories.NewGormMessageRepository(db)

	ids := services.NewMessengerIDService(users)
	if _, err := ids.EnsureAll(); err != nil {
		logrus.WithError(err).Fatal("Messenger id backfill failed")
	}

	hub := realtime.NewHub(config.HeartbeatInterval())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	service := services.NewConversationService(conversations, messages, users, ids, hub)
	mc := controllers.NewMessageController(service)
	sc := controllers.NewStreamController(service, hub)

	r := routes.RegisterRoutes(mc, sc)
	if err := r.Run(config.ListenAddr()); err != nil {
		logrus.WithError(err).Fatal("Server failed to start")
	}
}
