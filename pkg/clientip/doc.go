// Package clientip resolves the address of the caller behind zero or more
// reverse proxies and carries it through the request context so that log
// records of a webhook delivery can be traced back to its sender.
//
// Only headers passed to New are consulted:
//
//	rs := clientip.New(clientip.HeaderForwardedFor)
//	r.Use(rs.Middleware)
package clientip
