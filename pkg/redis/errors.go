package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the given time period")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
	ErrHistoryStore                 = errors.New("redis history store operation failed")
	ErrCorruptEntry                 = errors.New("redis history entry is not valid JSON")
)
