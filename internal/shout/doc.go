// Package shout implements the payload transformation: a production
// uppercase transformer and a simulator that injects classified failures
// for exercising the worker's retry and expiry handling.
package shout
