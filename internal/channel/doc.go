// Package channel implements the control channel between the core and a
// telescope: the JSON message envelopes and the transports that carry them.
//
// Outbound traffic is always a command envelope:
//
//	{"type":"command","id":"<uuid>","command":"goto","payload":{...}}
//
// Inbound traffic is one of a closed set of messages, returned by Decode:
//
//	Response      {"type":"response","id":"...","ok":true,"result":{...}}
//	StatusPush    {"type":"status","payload":{"battery":81,...}}
//	ErrorMessage  {"type":"error","id":"...","error":{"code":"...","message":"..."}}
//
// Callers switch on the concrete type; there is no other kind.
//
// Transports implement Dialer. WebSocketDialer talks to the device
// directly; MQTTDialer relays through a broker.
package channel
