package rpc

import (
	"encoding/binary"
	"fmt"
)

const (
	// MaxDatagramSize is the maximum size of a single seqcast datagram,
	// including the kind tag.
	MaxDatagramSize = 1024

	// AdmissionToken is the literal token that follows the tag of an
	// admission request.
	AdmissionToken = "request_connection"

	// packetHeaderSize is the size of the tag plus sequence number.
	packetHeaderSize = 1 + 4

	// MaxPacketPayloadSize is the largest payload that fits in a single
	// packet datagram.
	MaxPacketPayloadSize = MaxDatagramSize - packetHeaderSize

	admissionReplySize = 1 + 4
)

// MsgKind is the discriminant tag that starts every seqcast datagram.
type MsgKind byte

const (
	MsgKindAdmissionRequest MsgKind = 0x01
	MsgKindAdmissionReply   MsgKind = 0x02
	MsgKindPacket           MsgKind = 0x03
)

func (k MsgKind) String() string {
	switch k {
	case MsgKindAdmissionRequest:
		return "admission request"
	case MsgKindAdmissionReply:
		return "admission reply"
	case MsgKindPacket:
		return "packet"
	default:
		return fmt.Sprintf("unknown kind %#02x", byte(k))
	}
}

// Message is a decoded seqcast message.
type Message interface {
	// Kind returns the message kind tag.
	Kind() MsgKind

	// AppendEncoded appends the wire encoding of the message to b.
	AppendEncoded(b []byte) ([]byte, error)
}

// AdmissionRequest is sent by clients to register with a server.
type AdmissionRequest struct{}

func (AdmissionRequest) Kind() MsgKind { return MsgKindAdmissionRequest }

func (AdmissionRequest) AppendEncoded(b []byte) ([]byte, error) {
	b = append(b, byte(MsgKindAdmissionRequest))
	return append(b, AdmissionToken...), nil
}

// AdmissionReply is unicast by the server to a newly admitted client. Count is
// the total number of packets in the session.
type AdmissionReply struct {
	Count uint32
}

func (AdmissionReply) Kind() MsgKind { return MsgKindAdmissionReply }

func (r AdmissionReply) AppendEncoded(b []byte) ([]byte, error) {
	b = append(b, byte(MsgKindAdmissionReply))
	return binary.BigEndian.AppendUint32(b, r.Count), nil
}

// Packet is a single numbered record of the stream.
type Packet struct {
	Sequence uint32
	Payload  []byte
}

func (Packet) Kind() MsgKind { return MsgKindPacket }

// AppendEncoded appends the encoded packet to b. Payloads larger than
// MaxPacketPayloadSize are rejected instead of being truncated.
func (p Packet) AppendEncoded(b []byte) ([]byte, error) {
	if len(p.Payload) > MaxPacketPayloadSize {
		return b, fmt.Errorf("%w: packet %d payload has %d bytes (max %d)",
			ErrMessageTooLarge, p.Sequence, len(p.Payload),
			MaxPacketPayloadSize)
	}
	b = append(b, byte(MsgKindPacket))
	b = binary.BigEndian.AppendUint32(b, p.Sequence)
	return append(b, p.Payload...), nil
}

// Encode returns the wire encoding of msg in a new buffer.
func Encode(msg Message) ([]byte, error) {
	return msg.AppendEncoded(make([]byte, 0, MaxDatagramSize))
}

// Decode decodes a datagram into a message. Errors wrap ErrMalformedMessage.
//
// The payload of a decoded Packet aliases b.
func Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, malformed("empty datagram")
	}
	if len(b) > MaxDatagramSize {
		return nil, malformed("datagram has %d bytes (max %d)", len(b),
			MaxDatagramSize)
	}

	switch kind := MsgKind(b[0]); kind {
	case MsgKindAdmissionRequest:
		if string(b[1:]) != AdmissionToken {
			return nil, malformed("invalid admission token")
		}
		return AdmissionRequest{}, nil

	case MsgKindAdmissionReply:
		if len(b) != admissionReplySize {
			return nil, malformed("admission reply has %d bytes", len(b))
		}
		return AdmissionReply{Count: binary.BigEndian.Uint32(b[1:])}, nil

	case MsgKindPacket:
		if len(b) < packetHeaderSize {
			return nil, malformed("packet has %d bytes", len(b))
		}
		return Packet{
			Sequence: binary.BigEndian.Uint32(b[1:]),
			Payload:  b[packetHeaderSize:],
		}, nil

	default:
		return nil, malformed("%s", kind)
	}
}

// DecodeAdmissionReply decodes b, which must be an admission reply.
func DecodeAdmissionReply(b []byte) (AdmissionReply, error) {
	msg, err := Decode(b)
	if err != nil {
		return AdmissionReply{}, err
	}
	reply, ok := msg.(AdmissionReply)
	if !ok {
		return AdmissionReply{}, fmt.Errorf("%w: got %s", ErrUnexpectedKind,
			msg.Kind())
	}
	return reply, nil
}

// DecodePacket decodes b, which must be a packet.
func DecodePacket(b []byte) (Packet, error) {
	msg, err := Decode(b)
	if err != nil {
		return Packet{}, err
	}
	pkt, ok := msg.(Packet)
	if !ok {
		return Packet{}, fmt.Errorf("%w: got %s", ErrUnexpectedKind,
			msg.Kind())
	}
	return pkt, nil
}
