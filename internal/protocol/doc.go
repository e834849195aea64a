// Package protocol implements the binary UDP ingest framing: a 7-byte
// header [type:1][len:2][stream:4] followed by either a signaling payload
// that opens a stream session or an audio payload carrying sequenced PCM.
// Multi-byte fields are big-endian; the PCM samples themselves stay
// little-endian.
package protocol
