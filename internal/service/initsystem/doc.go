// Package initsystem abstracts the service-supervision system behind a small
// interface and implements it with systemctl. The deployer never talks to
// the managed bot directly; this control surface is the only coordination
// point between the two processes.
package initsystem
