// Package api serves the wanboard HTTP surface.
//
// Every JSON endpoint answers with the same envelope:
//
//	{"success": true, "error": false, "data": ..., "message": ""}
//
// Failures set success=false and error=true and carry a human-readable
// message. An unknown interface name on prefer or refresh is reported with
// HTTP 200 and error=true, so clients must inspect the envelope rather than
// the status code alone.
package api
