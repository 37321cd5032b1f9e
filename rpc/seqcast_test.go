package rpc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/companyzero/seqcast/internal/assert"
)

// TestEncodeWireFormat asserts the exact bytes produced for each message kind.
func TestEncodeWireFormat(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want []byte
	}{{
		name: "admission request",
		msg:  AdmissionRequest{},
		want: append([]byte{0x01}, "request_connection"...),
	}, {
		name: "admission reply",
		msg:  AdmissionReply{Count: 50},
		want: []byte{0x02, 0x00, 0x00, 0x00, 0x32},
	}, {
		name: "packet",
		msg:  Packet{Sequence: 0x01020304, Payload: []byte("aaa")},
		want: []byte{0x03, 0x01, 0x02, 0x03, 0x04, 'a', 'a', 'a'},
	}, {
		name: "empty packet",
		msg:  Packet{Sequence: 7},
		want: []byte{0x03, 0x00, 0x00, 0x00, 0x07},
	}}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.msg)
			assert.NilErr(t, err)
			if !bytes.Equal(got, tc.want) {
				t.Fatalf("unexpected encoding: got %x, want %x", got, tc.want)
			}

			dec, err := Decode(got)
			assert.NilErr(t, err)
			assert.DeepEqual(t, dec.Kind(), tc.msg.Kind())
		})
	}
}

// TestPacketPayloadLimit tests that packets are rejected at production time
// when they would not fit in a datagram.
func TestPacketPayloadLimit(t *testing.T) {
	pkt := Packet{Sequence: 1, Payload: make([]byte, MaxPacketPayloadSize)}
	b, err := Encode(pkt)
	assert.NilErr(t, err)
	assert.DeepEqual(t, len(b), MaxDatagramSize)

	pkt.Payload = make([]byte, MaxPacketPayloadSize+1)
	_, err = Encode(pkt)
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

// TestDecodeMalformed tests that invalid datagrams are reported as malformed.
func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
	}{
		{name: "empty", b: nil},
		{name: "unknown tag", b: []byte{0x7f, 0x01, 0x02}},
		{name: "zero tag", b: []byte{0x00}},
		{name: "untagged token", b: []byte("request_connection")},
		{name: "wrong token", b: append([]byte{0x01}, "request_connectio"...)},
		{name: "request with extra bytes", b: append([]byte{0x01}, "request_connection!"...)},
		{name: "short reply", b: []byte{0x02, 0x00, 0x00, 0x01}},
		{name: "long reply", b: []byte{0x02, 0x00, 0x00, 0x00, 0x01, 0x00}},
		{name: "short packet", b: []byte{0x03, 0x00, 0x00}},
		{name: "oversized", b: append([]byte{0x03}, make([]byte, MaxDatagramSize)...)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.b)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

// TestTypedDecoders tests the kind-checking decode helpers.
func TestTypedDecoders(t *testing.T) {
	replyBytes, err := Encode(AdmissionReply{Count: 3})
	assert.NilErr(t, err)
	pktBytes, err := Encode(Packet{Sequence: 2, Payload: []byte("aaa")})
	assert.NilErr(t, err)

	reply, err := DecodeAdmissionReply(replyBytes)
	assert.NilErr(t, err)
	assert.DeepEqual(t, reply.Count, uint32(3))

	pkt, err := DecodePacket(pktBytes)
	assert.NilErr(t, err)
	assert.DeepEqual(t, pkt.Sequence, uint32(2))
	assert.DeepEqual(t, pkt.Payload, []byte("aaa"))

	_, err = DecodeAdmissionReply(pktBytes)
	assert.ErrorIs(t, err, ErrUnexpectedKind)
	_, err = DecodePacket(replyBytes)
	assert.ErrorIs(t, err, ErrUnexpectedKind)

	_, err = DecodePacket([]byte{0xff})
	if !errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrUnexpectedKind) {
		t.Fatalf("unexpected error: %v", err)
	}
}
