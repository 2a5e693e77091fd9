// Package pcodec implements a dictionary-trained compressor for short,
// structurally repetitive network payloads: game-state snapshots, telemetry
// frames, financial-tick messages. Payloads run from 8 to 65535 bytes and
// arrive over a connection where many successive packets share structure,
// which a generic general-purpose compressor cannot exploit because it
// starts from an empty model on every call.
//
// A Dictionary is trained once, offline, from a representative corpus
// (DictTrain) and then shared read-only across any number of per-connection
// Contexts (NewContext). Each Context tracks the state a single connection
// needs to exploit inter-packet structure: a ring buffer for cross-packet
// back-references, the previous one or two reconstructed packets for delta
// prediction, and (optionally) a live frequency overlay that drifts toward
// observed traffic without discarding the trained baseline.
//
// Compression stack:
//
//	Pre-filter        identity / order-1 delta / order-2 delta / LZP XOR /
//	                   order-1 then LZP / order-2 then order-1
//	Entropy coder      tANS at table-log 10 or 12, per-position (PCTX) table
//	                   selection, optionally bigram-conditioned
//	Mini-coders        RLE, LZ77 (self-referential), LZ77X (ring-buffer
//	                   referential), passthrough
//	Wire header        1-byte packet-type code indexing a 256-entry table,
//	                   plus a legacy 8-byte fixed header for callers that
//	                   need it
//
// Compress tries every applicable (pre-filter, coder) combination and keeps
// whichever produces the smallest packet, passthrough included, so output
// never exceeds input by more than the header's fixed overhead. Decompress
// never trusts a packet's declared sizes or back-reference offsets without
// bounds-checking them against the buffers it actually owns.
package pcodec
