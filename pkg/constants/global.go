// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

// Service constants
const (
	// ServiceName is the name of this service
	ServiceName = "subscriber"
)

// HTTP constants
const (
	// RequestIDHeader is the HTTP header name for request ID
	RequestIDHeader = "X-Request-Id"
	// AuthorizationHeader is the header carrying a bearer access token
	AuthorizationHeader = "Authorization"
	// AccessTokenQueryParam is the query parameter carrying the access token
	AccessTokenQueryParam = "access_token"
	// IDTypeField selects how the list identifier in the path is interpreted
	IDTypeField = "ID_TYPE"
	// IDTypeNumeric makes the path identifier a numeric list id
	IDTypeNumeric = "id"
)

// Environment variables
const (
	// EnvNATSURL is the environment variable for NATS server URL
	EnvNATSURL = "NATS_URL"
	// EnvNATSCredentials is the environment variable for NATS credentials
	EnvNATSCredentials = "NATS_CREDENTIALS"
	// EnvRedisURL is the environment variable for the Redis URL
	EnvRedisURL = "REDIS_URL"
	// EnvPostgresDSN is the environment variable for the blacklist database
	EnvPostgresDSN = "POSTGRES_DSN"
)
