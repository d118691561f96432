package main

import (
	"context"
	"time"

	"github.com/arcticline/pricebook-cli/internal/input"
	"github.com/arcticline/pricebook-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	c := cfg.Store
	if c.Driver == "sqlite" && c.SQLitePath == "" {
		c.SQLitePath = "pricebook.db"
	}
	return store.Open(ctx, c)
}

func inputOptions() input.Options {
	return input.Options{
		Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		FTPUser:     cfg.Fetch.FTPUser,
		FTPPassword: cfg.Fetch.FTPPassword,
	}
}
