package main

import (
	"fmt"

	"github.com/vaughan0/go-ini"
	log "gopkg.in/inconshreveable/log15.v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logOutput is the unfiltered destination shared by the root logger and child loggers with their own level.
type logOutput struct {
	handler log.Handler
	file    *lumberjack.Logger
}

func (o *logOutput) Close() error {
	if o.file == nil {
		return nil
	}
	return o.file.Close()
}

// newLogger builds the root logger from the [log] section. Records go to stdout unless [log] file is set, in which
// case they go to a rotated file.
func newLogger(conf ini.File) (log.Logger, *logOutput, error) {
	level, _ := conf.Get("log", "level")
	if level == "" {
		level = "warn"
	}

	output := &logOutput{handler: log.StdoutHandler}
	if path, _ := conf.Get("log", "file"); path != "" && path != "-" {
		output.file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    20,
			MaxBackups: 5,
			MaxAge:     28,
		}
		output.handler = log.StreamHandler(output.file, log.LogfmtFormat())
	}

	logger := log.New()
	if err := setFilterHandler(level, logger, output.handler); err != nil {
		return nil, nil, err
	}

	return logger, output, nil
}

func setFilterHandler(level string, logger log.Logger, handler log.Handler) error {
	if level == "none" {
		logger.SetHandler(log.DiscardHandler())
		return nil
	}

	lvl, err := log.LvlFromString(level)
	if err != nil {
		return fmt.Errorf("Bad log level: %v", err)
	}
	logger.SetHandler(log.LvlFilterHandler(lvl, handler))

	return nil
}
