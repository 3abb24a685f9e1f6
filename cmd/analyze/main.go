package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env file: %v", err)
	}

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "analyze",
		Usage: "Pharmacy sales and inventory analytics",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (console, json)",
				Value:   "console",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: setupLogging,
		Commands: []*cli.Command{
			{
				Name:      "run",
				Aliases:   []string{"file"},
				Usage:     "Analyze one CSV/XLSX file and write a report",
				ArgsUsage: "<file>",
				Flags:     append(append(analysisFlags(), reportFlags()...), windowFlags()...),
				Action:    runFile,
			},
			{
				Name:      "batch",
				Usage:     "Analyze every CSV/XLSX file in a directory, or the given files, one report per file",
				ArgsUsage: "<dir> | <file>...",
				Flags: append(append(analysisFlags(), reportFlags()...),
					&cli.IntFlag{
						Name:    "workers",
						Usage:   "Number of files analyzed concurrently",
						EnvVars: []string{"APP_WORKERS"},
					},
					&cli.DurationFlag{
						Name:  "file-timeout",
						Usage: "Maximum time spent on one file (0 for no limit)",
					},
				),
				Action: runBatch,
			},
			{
				Name:  "cache",
				Usage: "Manage the analysis result cache",
				Subcommands: []*cli.Command{
					{
						Name:   "purge",
						Usage:  "Drop every cached analysis result",
						Flags:  configFlags(),
						Action: purgeCache,
					},
				},
			},
			{
				Name:   "options",
				Usage:  "Print the effective analysis options as JSON",
				Flags:  analysisFlags(),
				Action: printOptions,
			},
		},
		// keep "abc_thresholds=70,90" as one option value
		DisableSliceFlagSeparator: true,
	}
}

func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Optional yaml/json/toml config file",
			EnvVars: []string{"CONFIG_FILE"},
		},
	}
}

func analysisFlags() []cli.Flag {
	return append(configFlags(),
		&cli.StringSliceFlag{
			Name:    "option",
			Aliases: []string{"o"},
			Usage:   "Analysis option as key=value (repeatable), e.g. -o trend_bucket=month",
		},
		&cli.StringFlag{
			Name:  "mode",
			Usage: "Validation mode: strict or lenient",
		},
		&cli.StringFlag{
			Name:  "delimiter",
			Usage: "CSV delimiter (\",\", \";\", \"tab\")",
		},
		&cli.StringFlag{
			Name:  "date-format",
			Usage: "Go time layout of the date column, e.g. 02/01/2006",
		},
		&cli.BoolFlag{
			Name:  "decimal-comma",
			Usage: "Numbers use comma decimals (1.234,50)",
		},
		&cli.StringFlag{
			Name:  "sheet",
			Usage: "XLSX sheet name (defaults to the first sheet)",
		},
	)
}

func reportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Report format: xlsx, html or json",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Directory reports are written to",
		},
		&cli.StringFlag{
			Name:  "locale",
			Usage: "Number formatting in reports: es or en",
		},
	}
}

func windowFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "window-start",
			Usage: "Reject rows dated before YYYY-MM-DD",
		},
		&cli.StringFlag{
			Name:  "window-end",
			Usage: "Reject rows dated after YYYY-MM-DD",
		},
	}
}
