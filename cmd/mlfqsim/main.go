package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"mlfqsim/internal/job"
	"mlfqsim/internal/logging"
	"mlfqsim/internal/sched"
)

func main() {
	configPath := flag.String("config", "config.yml", "scheduler configuration file")
	workloadPath := flag.String("workload", "", "workload file, overrides the processes of the configuration")
	csvPath := flag.String("csv", "", "write every event to this CSV file")
	logLevel := flag.String("log", "", "log level: debug, info, warn, error")
	flag.Parse()

	if err := run(*configPath, *workloadPath, *csvPath, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "mlfqsim:", err)
		os.Exit(1)
	}
}

func run(configPath, workloadPath, csvPath, logLevel string) error {
	// Read the configuration
	cfg, err := sched.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if csvPath != "" {
		cfg.CSVPath = csvPath
	}
	if workloadPath != "" {
		data, err := os.ReadFile(workloadPath)
		if err != nil {
			return err
		}
		if cfg.Processes, err = job.Parse(data); err != nil {
			return err
		}
	}

	logger := logging.BuildLogger(cfg.LogLevel, os.Stderr)

	procs, err := job.BuildAll(cfg.Processes)
	if err != nil {
		return err
	}

	s := sched.New(cfg, logger, os.Stdout)
	if cfg.CSVPath != "" {
		if err := s.EnableCSVLogging(cfg.CSVPath); err != nil {
			return err
		}
	}
	for _, p := range procs {
		if err := s.Add(p); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := s.Run(ctx)
	fmt.Println()
	report.Print(os.Stdout)
	return err
}
