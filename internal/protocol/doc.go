// Package protocol owns the message codec.
//
// Ownership boundary:
// - dynamic message values (Value, Message)
// - validation against a schema
// - binary encode/decode over the wire primitives
//
// Encode validates first and refuses invalid messages. Decode never
// validates: a decoded message may still lack required fields.
package protocol
