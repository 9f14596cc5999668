package cmd

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-payments/config"
)

func configureLogging(cfg *config.Config) error {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Log.Level))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	return nil
}
