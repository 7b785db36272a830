package model

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for domain operations
var (
	ErrGeoDisabled = goerr.New("geolocation disabled")
	ErrInvalidIP   = goerr.New("invalid IP address")
)
