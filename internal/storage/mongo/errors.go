package mongo

import "errors"

var (
	ErrMissingURI             = errors.New("mongo connection string is not set")
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
)
