package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/adapters"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/cmd"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/dedup"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/engine"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/log"
)

const defaultPort = 9090

func main() {
	command := &cli.Command{
		Name:                  "automation-engine",
		Usage:                 "Run the automation flow execution engine",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the intake API on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, memory, none)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for trigger de-duplication (disabled when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:     "messaging-url",
				Usage:    "Base URL of the messaging subsystem internal API",
				Required: true,
				Sources:  cli.EnvVars("MESSAGING_URL"),
			},
			&cli.StringFlag{
				Name:     "crm-url",
				Usage:    "Base URL of the CRM subsystem internal API",
				Required: true,
				Sources:  cli.EnvVars("CRM_URL"),
			},
			&cli.StringFlag{
				Name:     "notifications-url",
				Usage:    "Base URL of the notification subsystem internal API",
				Required: true,
				Sources:  cli.EnvVars("NOTIFICATIONS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("automation-engine")
			logger.InfoContext(ctx, "Initializing automation engine")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "automation-engine", logger)
			if err != nil {
				return err
			}

			if eventBus != nil {
				defer func() {
					if err := eventBus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()
			}

			var deduper dedup.Deduper

			if redisURL := command.String("redis-url"); redisURL != "" {
				redisDeduper, err := dedup.NewRedisDeduperFromURL(ctx, redisURL)
				if err != nil {
					return err
				}

				defer func() {
					if err := redisDeduper.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close deduper", "error", err)
					}
				}()

				deduper = redisDeduper
			}

			contacts := adapters.NewCRMClient(command.String("crm-url"))
			messages := adapters.NewMessagingClient(command.String("messaging-url"))
			notifier := adapters.NewNotificationClient(command.String("notifications-url"))

			interpreter := engine.NewInterpreter(persistence, contacts, messages, notifier, eventBus, logger)
			dispatcher := engine.NewDispatcher(persistence, contacts, interpreter, deduper, logger)
			menuRouter := engine.NewMenuRouter(persistence, contacts, interpreter, logger)
			sweeper := engine.NewSweeper(persistence, contacts, interpreter, logger)

			service := NewService(logger, persistence, eventBus, dispatcher, menuRouter, sweeper)

			return service.Start(ctx, command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
