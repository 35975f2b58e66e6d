// Package ingest turns raw radio frames into sensor events.
//
// Frames arrive from the ESP-NOW bridge with the following layout (little endian):
//
//	Length(1) | MAC(6) | Type(1) | Seq(4) | Payload(0..233) | CRC32(4) | Terminal(1)
//
// Length counts every byte after itself and the CRC32 (IEEE) covers MAC
// through Payload. The Ingestor also tracks when each sensor was last heard
// and reports sensors that fall silent.
package ingest
