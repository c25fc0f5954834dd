package config

import "time"

type FederationConfig interface {
	GetRuntimePollInterval() time.Duration
	GetRuntimeMaxWait() time.Duration
	GetRegistryTimeout() time.Duration
}

type Federation struct{}

var _ FederationConfig = Federation{}

func (Federation) GetRuntimePollInterval() time.Duration {
	return 25 * time.Millisecond
}

func (Federation) GetRuntimeMaxWait() time.Duration {
	return 2000 * time.Millisecond
}

func (Federation) GetRegistryTimeout() time.Duration {
	return 5 * time.Second
}
