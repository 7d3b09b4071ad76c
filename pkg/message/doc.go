// Package message defines the named, typed record that travels between a local
// publish/subscribe community and remote pShare peers.
//
// This package defines:
//   - Message: a named value (double, string or binary) with its source application,
//     community and timestamp
//   - Codec: the serialization boundary used to turn a Message into a UDP payload
//   - ProtoCodec: the default Codec, a compact protobuf wire encoding
//
// The relay core treats encoded messages as opaque byte buffers. The only property it
// relies on is that the encoded size is known before the buffer is built, so that the
// datagram ceiling can be enforced without serializing oversize records.
//
// Example usage:
//
//	msg := message.NewDouble("NAV_X", 12.5)
//	msg.Source = "pNav"
//
//	codec := message.ProtoCodec{}
//	if codec.Size(msg) > maxPayload {
//		return errTooBig
//	}
//	payload, err := codec.Marshal(msg)
//	if err != nil {
//		return err
//	}
package message
