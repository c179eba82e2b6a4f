// Package mongo wraps go.mongodb.org/mongo-driver/v2 client setup: New
// connects with retries from an env-tagged Config, WithTransaction runs a
// function inside a session transaction, and Healthcheck returns a ping
// closure. Transactions require a replica set or sharded cluster.
package mongo
