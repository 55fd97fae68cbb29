// Package billing is the HTTP surface of billsync.
//
// It mounts the processor webhook receiver, the caller-facing session
// endpoints and the health probes on a chi router:
//
//	POST /webhook            signed processor deliveries
//	POST /checkout-session   {"priceId": "..."} -> {"url": "..."}
//	POST /portal-session     -> {"url": "..."}
//	GET  /subscription       current subscription of the caller
//	GET  /plans              configured plan catalog
//	GET  /health/live
//	GET  /health/ready
//
// The webhook receiver reads the body untouched, verifies its signature,
// archives it and hands it to the dispatcher. It answers 200 for applied
// and ignored events and 400 for anything that should be redelivered.
// Deliveries that can never be linked to a user are also reported to a
// notify.Notifier.
//
// Session endpoints authenticate with a bearer token and map error
// categories from package subscription to status codes: validation 400,
// authentication 401, processor failures 502. Every error body has the
// shape {"error": "message"}.
package billing
