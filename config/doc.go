// Package config loads docflow settings from the environment.
//
// Variables are read after an optional .env file is applied. Every setting
// has a default suited to a single-machine install, so an empty environment
// yields a usable Config:
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	svc, err := docflow.Open(cfg)
package config
