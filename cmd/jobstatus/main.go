package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

const (
	flagConfig   = "config"
	flagQueue    = "queue"
	flagOptions  = "options"
	flagStart    = "start"
	flagPerPage  = "per-page"
	flagAll      = "all"
	flagScope    = "scope"
	flagPort     = "port"
	flagLogLevel = "log-level"
)

var version = "dev"

var commonFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    flagConfig,
		Usage:   "Path to the configuration file.",
		EnvVars: []string{"JOBSTATUS_CONFIG"},
	},
	&cli.StringFlag{
		Name:    flagLogLevel,
		Usage:   "Override the configured log level.",
		EnvVars: []string{"JOBSTATUS_LOG_LEVEL"},
	},
}

var commands = []*cli.Command{
	{
		Name:   "worker",
		Usage:  "Run a worker that performs queued jobs",
		Flags:  commonFlags,
		Action: runWorker,
	},
	{
		Name:  "serve",
		Usage: "Serve the status HTTP API and run configured schedules",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    flagPort,
				Usage:   "Override the configured HTTP port.",
				EnvVars: []string{"JOBSTATUS_PORT"},
			},
		}, commonFlags...),
		Action: runServe,
	},
	{
		Name:      "enqueue",
		Usage:     "Enqueue a tracked job",
		ArgsUsage: "<job>",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  flagQueue,
				Usage: "The queue to enqueue on. Defaults to the job's queue.",
			},
			&cli.StringFlag{
				Name:  flagOptions,
				Usage: "The job options as a JSON object.",
			},
		}, commonFlags...),
		Action: runEnqueue,
	},
	{
		Name:      "status",
		Usage:     "Show one status, or list the most recent ones",
		ArgsUsage: "[uuid]",
		Flags: append([]cli.Flag{
			&cli.Int64Flag{
				Name:  flagStart,
				Usage: "The rank to start listing from.",
			},
			&cli.Int64Flag{
				Name:  flagPerPage,
				Usage: "The number of statuses to list.",
				Value: 20,
			},
		}, commonFlags...),
		Action: runStatus,
	},
	{
		Name:      "kill",
		Usage:     "Ask running jobs to stop",
		ArgsUsage: "[uuid...]",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  flagAll,
				Usage: "Kill every tracked job.",
			},
		}, commonFlags...),
		Action: runKill,
	},
	{
		Name:  "clear",
		Usage: "Remove statuses",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  flagScope,
				Usage: "One of all, completed, failed or killed.",
				Value: "all",
			},
		}, commonFlags...),
		Action: runClear,
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "jobstatus",
		Usage:    "Track and control background jobs",
		Version:  version,
		Commands: commands,
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
