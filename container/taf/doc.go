// Package taf builds, inspects and splits Tonie audio files.
//
// A Tonie audio file is an Ogg Opus stream preceded by a 4096 byte header
// block:
//
//	Bytes 0-3:     Header message length (big-endian)
//	Bytes 4-4095:  tonie.TonieHeader protobuf message, zero padded
//	Bytes 4096+:   Ogg Opus stream
//
// The header message carries the SHA-1 and the length of the Ogg stream,
// a timestamp that doubles as the stream serial number, and the page
// sequence number each chapter starts at.
//
// The Ogg stream is laid out on 4096 byte blocks. The identification page
// and a comment page with fixed contents take 512 bytes, so the first audio
// page is 0xE00 bytes and ends the first block. Every following page is
// exactly 4096 bytes, which is reached by padding the Opus packets. Only
// stereo 48 kHz streams are built.
package taf
