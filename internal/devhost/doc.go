// Package devhost is a headless development host: a browser page stands in for
// the GUI surface, every unrouted HTTP request is forwarded through the bridge,
// and eval commands reach the page over a websocket.
package devhost
