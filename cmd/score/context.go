package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/scoreapp/score/internal/client"
	"github.com/scoreapp/score/internal/config"
	"github.com/scoreapp/score/internal/logger"
	"github.com/scoreapp/score/internal/recommend"
)

type commandContext struct {
	viper      *viper.Viper
	configFlag *string
	verbose    *bool

	// newTransport is replaceable in tests
	newTransport func(*config.TransportConfig) (client.Transport, error)

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		viper:        viper.New(),
		configFlag:   configFlag,
		verbose:      verbose,
		newTransport: client.NewTransport,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.LoadFrom(c.viper, path)
	})
	return c.config, c.configErr
}

func (c *commandContext) transport() (client.Transport, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return c.newTransport(&cfg.Transport)
}

func (c *commandContext) logger() *zap.Logger {
	return logger.NewCLI(c.verbose != nil && *c.verbose)
}

func (c *commandContext) recommender() (*recommend.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	lib, err := recommend.DefaultLibrary()
	if err != nil {
		return nil, fmt.Errorf("failed to load reference library: %w", err)
	}
	return recommend.NewService(lib,
		recommend.WithDecay(cfg.Recommend.Decay),
		recommend.WithDefaultK(cfg.Recommend.DefaultK),
	)
}
