package mac

/*------------------------------------------------------------------
 *
 * Purpose: CCM* AEAD (RFC 3610, L=2) over an AESDriver.
 *
 * Description: Grounded on original_source's os/lib/ccm-star.c. CCM*
 *		differs from plain CCM only in that a zero MIC length is
 *		allowed (encryption with no authentication). POTR's OTP
 *		computation, a 2- or 3-byte MIC over an empty m, goes
 *		through SealUnchecked.
 *		The nonce is fixed at 13 bytes (L=2, i.e. a 2-byte message
 *		length field) per spec section 6
 *		(CCM_STAR_NONCE_LENGTH=13).
 *
 *		The whole operation holds the driver's lock (spec section
 *		4.3: "Locking is mandatory: CCM* holds the lock across its
 *		whole operation").
 *
 *------------------------------------------------------------------*/

import "encoding/binary"

const CCMStarNonceLength = 13

// CCMStar implements CCM* AEAD over a shared AESDriver.
type CCMStar struct {
	Driver AESDriver
}

func NewCCMStar(driver AESDriver) *CCMStar {
	return &CCMStar{Driver: driver}
}

// validMICLen reports whether micLen is one of the lengths CCM* allows
// (spec section 4.3: 0, 4, 8, 16; anything else, including any length > 16,
// is rejected).
func validMICLen(micLen int) bool {
	switch micLen {
	case 0, 4, 8, 16:
		return true
	default:
		return false
	}
}

// Seal authenticates a||m then encrypts m in place and appends a micLen-byte
// MIC to the returned slice (spec section 4.3 "forward" direction). key is
// loaded into the driver's areaIndex before use. m is overwritten with its
// ciphertext; the returned ciphertext||MIC is always a freshly allocated
// slice that does not share m's backing array.
func (c *CCMStar) Seal(areaIndex int, key [16]byte, nonce [CCMStarNonceLength]byte, a, m []byte, micLen int) ([]byte, error) {
	if !validMICLen(micLen) {
		return nil, StatusBadLength
	}
	return c.seal(areaIndex, key, nonce, a, m, micLen)
}

// SealUnchecked is Seal without the restriction to CCM*'s four standard MIC
// lengths. POTR's one-time-pseudonym (spec section 4.7) is 2 or 3 bytes,
// chosen for wire compactness rather than CCM* compliance, so its
// computation cannot go through Seal's validation.
func (c *CCMStar) SealUnchecked(areaIndex int, key [16]byte, nonce [CCMStarNonceLength]byte, a, m []byte, micLen int) ([]byte, error) {
	if micLen < 0 || micLen > 16 {
		return nil, StatusBadLength
	}
	return c.seal(areaIndex, key, nonce, a, m, micLen)
}

func (c *CCMStar) seal(areaIndex int, key [16]byte, nonce [CCMStarNonceLength]byte, a, m []byte, micLen int) ([]byte, error) {
	if !c.Driver.GetLock() {
		return nil, StatusCcmLocked
	}
	defer c.Driver.ReleaseLock()

	if err := c.Driver.SetKey(areaIndex, key); err != nil {
		return nil, err
	}

	mic := c.cbcMAC(nonce, a, m, micLen)
	ciphertext := make([]byte, len(m))
	copy(ciphertext, m)
	c.ctrCrypt(nonce, ciphertext, 1)
	encryptedMIC := make([]byte, 16)
	c.ctrBlock(nonce, 0, encryptedMIC)
	for i := 0; i < micLen; i++ {
		mic[i] ^= encryptedMIC[i]
	}

	copy(m, ciphertext)
	return append(ciphertext, mic[:micLen]...), nil
}

// Open decrypts ciphertext (sealed by Seal) into a new slice, leaving sealed
// unmodified, and verifies the trailing micLen-byte MIC against a, returning
// the authenticated plaintext. If the MIC does not verify, the decrypted
// but untrustworthy plaintext is returned together with StatusInauthentic --
// callers must discard the output rather than act on it in that case.
func (c *CCMStar) Open(areaIndex int, key [16]byte, nonce [CCMStarNonceLength]byte, a, sealed []byte, micLen int) ([]byte, error) {
	if !validMICLen(micLen) {
		return nil, StatusBadLength
	}
	if len(sealed) < micLen {
		return nil, StatusBadLength
	}
	ciphertext := sealed[:len(sealed)-micLen]
	gotMICEnc := sealed[len(sealed)-micLen:]

	if !c.Driver.GetLock() {
		return nil, StatusCcmLocked
	}
	defer c.Driver.ReleaseLock()

	if err := c.Driver.SetKey(areaIndex, key); err != nil {
		return nil, err
	}

	plaintext := make([]byte, len(ciphertext))
	copy(plaintext, ciphertext)
	c.ctrCrypt(nonce, plaintext, 1)

	expectedMIC := c.cbcMAC(nonce, a, plaintext, micLen)
	keystream0 := make([]byte, 16)
	c.ctrBlock(nonce, 0, keystream0)
	for i := 0; i < micLen; i++ {
		expectedMIC[i] ^= keystream0[i]
	}

	if micLen > 0 && !constantTimeEqual(expectedMIC[:micLen], gotMICEnc) {
		return plaintext, StatusInauthentic
	}
	return plaintext, nil
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

// cbcMAC computes the raw (pre-XOR-with-S0) CCM* MIC over a||m, per RFC 3610
// section 2.2, with L=2 (2-byte length field).
func (c *CCMStar) cbcMAC(nonce [CCMStarNonceLength]byte, a, m []byte, micLen int) [16]byte {
	var adataFlag byte
	if len(a) > 0 {
		adataFlag = 0x40
	}
	mPrime := byte(0)
	if micLen > 0 {
		mPrime = byte((micLen - 2) / 2)
	}
	flags := adataFlag | (mPrime << 3) | 0x01 // L'=1 (L-1, L=2)

	var b0 [16]byte
	b0[0] = flags
	copy(b0[1:14], nonce[:])
	binary.BigEndian.PutUint16(b0[14:16], uint16(len(m)))

	var x [16]byte
	c.Driver.Encrypt(&b0)
	x = b0

	blocks := encodeAdata(a)
	blocks = append(blocks, padTo16(m)...)

	for i := 0; i < len(blocks); i += 16 {
		var block [16]byte
		copy(block[:], blocks[i:i+16])
		for j := 0; j < 16; j++ {
			block[j] ^= x[j]
		}
		c.Driver.Encrypt(&block)
		x = block
	}

	return x
}

// encodeAdata encodes the associated data length prefix (RFC 3610 section
// 2.2) followed by a, padded to a multiple of 16 bytes. CCM* additional
// data never reaches the 2^16-2^8 boundary that needs a 5-byte encoding, so
// only the 2-byte-length form is implemented.
func encodeAdata(a []byte) []byte {
	if len(a) == 0 {
		return nil
	}
	buf := make([]byte, 2+len(a))
	binary.BigEndian.PutUint16(buf[:2], uint16(len(a)))
	copy(buf[2:], a)
	return padTo16(buf)
}

func padTo16(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	padded := len(b)
	if r := padded % 16; r != 0 {
		padded += 16 - r
	}
	out := make([]byte, padded)
	copy(out, b)
	return out
}

// ctrCrypt XORs buf in place with the CTR keystream starting at counter
// startCounter (1 for message encryption/decryption; counter 0 is reserved
// for masking the MIC, per RFC 3610).
func (c *CCMStar) ctrCrypt(nonce [CCMStarNonceLength]byte, buf []byte, startCounter uint16) {
	counter := startCounter
	for offset := 0; offset < len(buf); offset += 16 {
		var keystream [16]byte
		c.ctrBlock(nonce, counter, keystream[:])
		end := offset + 16
		if end > len(buf) {
			end = len(buf)
		}
		for i := offset; i < end; i++ {
			buf[i] ^= keystream[i-offset]
		}
		counter++
	}
}

// ctrBlock computes A_i = E(K, flags || nonce || i) for the CTR mode used
// to both mask the MIC (i=0) and encrypt the message (i=1,2,...).
func (c *CCMStar) ctrBlock(nonce [CCMStarNonceLength]byte, counter uint16, out []byte) {
	var a [16]byte
	a[0] = 0x01 // L'=1, no Adata/M' bits set for the counter-mode blocks
	copy(a[1:14], nonce[:])
	binary.BigEndian.PutUint16(a[14:16], counter)
	c.Driver.Encrypt(&a)
	copy(out, a[:])
}
