package mac

/*------------------------------------------------------------------
 *
 * Purpose: Plain IEEE 802.15.4-2006/2015 MAC header framer, used when POTR
 *		is not selected (spec section 6's compile-time wire-format
 *		choice).
 *
 * Description: Grounded on original_source's
 *		os/services/akes/csl-framer-compliant.c: a standards-
 *		conforming frame-control-field header instead of POTR's
 *		extended frame type, carrying a plain 32-bit frame counter
 *		and no OTP field (compliant-mode frames identify themselves
 *		by their IEEE 802.15.4 frame type, not a length pseudonym).
 *
 *------------------------------------------------------------------*/

import "encoding/binary"

// frame control field frame-type values (IEEE 802.15.4 section 7.2.2.1).
const (
	fcfTypeData byte = 0x01
	fcfTypeAck  byte = 0x02
	fcfTypeCmd  byte = 0x03
)

// Framer802154 implements Framer using a fixed 802.15.4-2015 header: 2-byte
// frame control field, sequence number, 2-byte destination PAN,
// 8-byte destination and source addresses, and a 32-bit little-endian frame
// counter, followed by the AEAD-sealed payload (spec section 6: "Frame
// counter is 32-bit little-endian in 2015 mode").
type Framer802154 struct {
	PanID uint16
	CCM   *CCMStar
}

func NewFramer802154(ccm *CCMStar, panID uint16) *Framer802154 {
	return &Framer802154{PanID: panID, CCM: ccm}
}

func fcfType(t FrameType) byte {
	switch t {
	case FrameAck, FrameAcknowledgment, FrameHelloAck:
		return fcfTypeAck
	case FrameHello, FrameUnicastCommand, FrameBroadcastCommand:
		return fcfTypeCmd
	default:
		return fcfTypeData
	}
}

func fcfTypeToFrameType(fcf byte) FrameType {
	switch fcf {
	case fcfTypeAck:
		return FrameAcknowledgment
	case fcfTypeCmd:
		return FrameUnicastCommand
	default:
		return FrameUnicastData
	}
}

// Encode assembles a compliant-mode frame: FCF, sequence number, PAN id,
// destination, source, little-endian frame counter, then the AEAD-sealed
// payload under key (compliant mode has no group-key OTP field, so
// groupKey is unused and accepted only to satisfy the Framer interface).
func (f *Framer802154) Encode(pb *Packetbuf, key [16]byte, groupKey [16]byte) ([]byte, error) {
	header := make([]byte, 0, 2+1+2+8+8+4)
	header = append(header, fcfType(pb.FrameType), byte(pb.SecurityLevel))
	header = append(header, pb.SeqNo)

	var panBuf [2]byte
	binary.BigEndian.PutUint16(panBuf[:], f.PanID)
	header = append(header, panBuf[:]...)
	header = append(header, pb.Receiver[:]...)
	header = append(header, pb.Sender[:]...)

	var ctrBuf [4]byte
	binary.LittleEndian.PutUint32(ctrBuf[:], pb.FrameCounter)
	header = append(header, ctrBuf[:]...)

	nonce := buildNonce(pb)
	payload := append([]byte(nil), pb.Payload...)
	sealed, err := f.CCM.Seal(0, key, nonce, header, payload, pb.SecurityLevel.MICLen())
	if err != nil {
		return nil, err
	}
	return append(header, sealed...), nil
}

// Decode is Encode's inverse.
func (f *Framer802154) Decode(raw []byte, key [16]byte, groupKey [16]byte) (*Packetbuf, error) {
	const headerLen = 2 + 1 + 2 + 8 + 8 + 4
	if len(raw) < headerLen {
		return nil, StatusBadLength
	}

	pb := &Packetbuf{FrameType: fcfTypeToFrameType(raw[0]), SecurityLevel: SecurityLevel(raw[1])}
	pb.SeqNo = raw[2]
	pb.PanID = binary.BigEndian.Uint16(raw[3:5])
	copy(pb.Receiver[:], raw[5:13])
	copy(pb.Sender[:], raw[13:21])
	pb.FrameCounter = binary.LittleEndian.Uint32(raw[21:25])

	header := raw[:headerLen]
	sealed := raw[headerLen:]

	nonce := buildNonce(pb)
	plaintext, err := f.CCM.Open(0, key, nonce, header, sealed, pb.SecurityLevel.MICLen())
	if err != nil {
		return nil, err
	}
	pb.Payload = plaintext
	return pb, nil
}

// PeekSender implements SenderPeeker: the compliant-mode header has no
// encrypted fields ahead of the AEAD-sealed payload, so this just reads the
// same offsets Decode does.
func (f *Framer802154) PeekSender(raw []byte) (sender LinkAddr, receiver LinkAddr, frameType FrameType, err error) {
	const headerLen = 2 + 1 + 2 + 8 + 8 + 4
	if len(raw) < headerLen {
		return sender, receiver, 0, StatusBadLength
	}
	frameType = fcfTypeToFrameType(raw[0])
	copy(receiver[:], raw[5:13])
	copy(sender[:], raw[13:21])
	return sender, receiver, frameType, nil
}
