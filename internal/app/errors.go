package service

import "errors"

// Sentinel kinds for service errors. Configuration and data problems keep
// the sentinels of the packages that detect them (config.ErrInvalidConfig,
// config.ErrLoadConfig, pairs.ErrDataIntegrity).
var (
	ErrPathResolution = errors.New("path resolution")
	ErrNoMatchers     = errors.New("no matchers configured")
)
