// Package msgs defines the messages exchanged with telemetry and bridge
// clients. They are hand-written protobuf messages.
package msgs

import (
	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
)

// Direction of a frame.
type Direction int32

// Directions
const (
	DirectionRx Direction = 0
	DirectionTx Direction = 1
)

func (d Direction) String() string {
	if d == DirectionTx {
		return "tx"
	}
	return "rx"
}

// FrameEvent reports a frame received or sent by the board.
type FrameEvent struct {
	Tick      uint64    `protobuf:"varint,1,opt,name=tick,proto3" json:"tick,omitempty"`
	Data      uint32    `protobuf:"varint,2,opt,name=data,proto3" json:"data,omitempty"`
	Direction Direction `protobuf:"varint,3,opt,name=direction,proto3" json:"direction,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *FrameEvent) ProtoMessage() {}

// Reset implements proto.Message.
func (m *FrameEvent) Reset() { *m = FrameEvent{} }

// String implements proto.Message.
func (m *FrameEvent) String() string { return proto.CompactTextString(m) }

// ButtonEvent reports a debounced button press.
type ButtonEvent struct {
	Tick   uint64 `protobuf:"varint,1,opt,name=tick,proto3" json:"tick,omitempty"`
	Button int32  `protobuf:"varint,2,opt,name=button,proto3" json:"button,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *ButtonEvent) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ButtonEvent) Reset() { *m = ButtonEvent{} }

// String implements proto.Message.
func (m *ButtonEvent) String() string { return proto.CompactTextString(m) }

// SendRequest asks the board to transmit bytes.
type SendRequest struct {
	Data []byte `protobuf:"bytes,1,opt,name=data,proto3" json:"data,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *SendRequest) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SendRequest) Reset() { *m = SendRequest{} }

// String implements proto.Message.
func (m *SendRequest) String() string { return proto.CompactTextString(m) }

// ButtonLevel sets the contact of a simulated button.
type ButtonLevel struct {
	Button int32 `protobuf:"varint,1,opt,name=button,proto3" json:"button,omitempty"`
	Active bool  `protobuf:"varint,2,opt,name=active,proto3" json:"active,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *ButtonLevel) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ButtonLevel) Reset() { *m = ButtonLevel{} }

// String implements proto.Message.
func (m *ButtonLevel) String() string { return proto.CompactTextString(m) }

// Encode serializes a message.
func Encode(m proto.Message) ([]byte, error) {
	data, err := proto.Marshal(m)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %T", m)
	}
	return data, nil
}

// Decode parses data into m.
func Decode(data []byte, m proto.Message) error {
	if err := proto.Unmarshal(data, m); err != nil {
		return errors.Wrapf(err, "decode %T", m)
	}
	return nil
}
