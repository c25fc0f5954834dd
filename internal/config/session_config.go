package config

import "time"

type SessionConfig interface {
	GetIdleTime() time.Duration
	GetIdleWarningTime() time.Duration
	GetRefreshPath() string
	GetRefreshTimeout() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetIdleTime() time.Duration {
	return 30 * time.Minute
}

func (Session) GetIdleWarningTime() time.Duration {
	return 5 * time.Minute
}

func (Session) GetRefreshPath() string {
	return "/auth/refresh"
}

func (Session) GetRefreshTimeout() time.Duration {
	return 10 * time.Second
}
