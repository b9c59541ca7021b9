// Package model holds the domain entities and the request payloads that
// create or mutate them.
package model
