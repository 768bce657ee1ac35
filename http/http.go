// Package http provides the outbound HTTP clients of the tipping service.
// Today that is the Neynar feed client supplying the content items that
// sessions pay for.
package http
