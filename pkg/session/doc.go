/*
Package session serializes access to workflow sessions and keeps them durable.

A Manager hands out navigation controllers by session id. Every operation runs
under a per-session lock (an in-process reference-counted mutex, plus an
optional ports.DistributedLocker for replicas), restores the session from its
ports.SessionStore when it is not live in memory, and saves the resulting
snapshot once the operation returns.
*/
package session
