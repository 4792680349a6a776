// Package main provides the automation scheduler: it runs the resumption
// sweeper on a cron cadence so suspended executions resume when their delay
// or menu timeout elapses.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/LLASTORI/cubo-magico-sub002/pkg/adapters"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/cmd"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/engine"
	"github.com/LLASTORI/cubo-magico-sub002/pkg/log"
)

const defaultSweepCron = "@every 1m"

func main() {
	command := &cli.Command{
		Name:                  "automation-scheduler",
		Usage:                 "Resume suspended automation executions on a schedule",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "sweep-cron",
				Usage:   "Cron expression for the resumption sweep",
				Value:   defaultSweepCron,
				Sources: cli.EnvVars("SWEEP_CRON"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, memory, none)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
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

			logger := log.WithModule("automation-scheduler")
			logger.InfoContext(ctx, "Initializing automation scheduler")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "automation-scheduler", logger)
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

			contacts := adapters.NewCRMClient(command.String("crm-url"))
			messages := adapters.NewMessagingClient(command.String("messaging-url"))
			notifier := adapters.NewNotificationClient(command.String("notifications-url"))

			interpreter := engine.NewInterpreter(persistence, contacts, messages, notifier, eventBus, logger)
			sweeper := engine.NewSweeper(persistence, contacts, interpreter, logger)

			scheduler := cron.New()

			_, err = scheduler.AddFunc(command.String("sweep-cron"), func() {
				resumed, err := sweeper.Sweep(ctx, time.Now().UTC())
				if err != nil {
					logger.Error("Sweep failed", "error", err)

					return
				}

				if resumed > 0 {
					logger.Info("Sweep resumed executions", "count", resumed)
				}
			})
			if err != nil {
				return err
			}

			scheduler.Start()
			logger.Info("Scheduler started", "cadence", command.String("sweep-cron"))

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-ctx.Done():
			case sig := <-signals:
				logger.Info("Received shutdown signal", "signal", sig.String())
			}

			stopped := scheduler.Stop()
			<-stopped.Done()

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
