// Command shoutd pulls shout requests from a Pub/Sub subscription,
// uppercases their payloads, and posts progress back to each request's
// callback URL. It also bundles small operator utilities for inspecting
// configuration and the local attempt journal.
package main
