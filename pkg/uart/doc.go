// Package uart implements a tick-driven software UART.
//
// The Receiver and Transmitter are synchronous state machines advanced by
// exactly one Step call per tick. The Receiver is stepped at OversampleFactor
// times the bit rate and recovers frames by sampling mid-bit; the Transmitter
// is stepped at the bit rate. Frames use 8N1 framing: a low start bit, eight
// data bits least significant first, a high stop bit, idle high.
//
// Rejected frames, start bit glitches and sends while busy are silent: they
// only show up as the absence of a Ready pulse or of a new frame on the line.
package uart
