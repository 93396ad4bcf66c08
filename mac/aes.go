package mac

/*------------------------------------------------------------------
 *
 * Purpose: AES-128 block cipher driver contract and keystore.
 *
 * Description: Grounded on original_source's arch/dev/crypto/cc/cc-aes-128.c
 *		and cc2538-aes-128.c: a four-operation driver (SetKey,
 *		Encrypt, GetLock, ReleaseLock) that CCM* holds across its
 *		whole operation (spec section 4.3), plus a keystore that
 *		remembers up to 16 128-bit keys by "area index" so a
 *		hardware engine need not reload a key it already holds.
 *
 *		The AES-128 block-cipher engine itself is explicitly out
 *		of scope (spec section 1); SoftwareAES128 below is the
 *		"software fallback" spec section 4.3 calls for, built on
 *		the standard library's crypto/aes.
 *
 *------------------------------------------------------------------*/

import (
	"crypto/aes"
	"fmt"
	"sync"
)

const KeystoreAreas = 16

// AESDriver is the block-cipher contract every CCM* implementation is built
// on top of. Locking is mandatory: a caller must hold the lock (GetLock)
// before calling SetKey/Encrypt and must ReleaseLock when done, so a single
// shared engine cannot be used by two overlapping operations (spec section
// 5: "Code called from interrupt context... MUST check this predicate").
type AESDriver interface {
	// SetKey loads the 128-bit key for areaIndex (0..KeystoreAreas-1) as the
	// active key for subsequent Encrypt calls.
	SetKey(areaIndex int, key [16]byte) error
	// Encrypt performs AES-128 ECB encryption of exactly one 16-byte block,
	// in place, under the most recently set key.
	Encrypt(block *[16]byte)
	// GetLock attempts to acquire the engine; it returns false rather than
	// blocking when already held, so interrupt-context callers can abort
	// cleanly instead of deadlocking (spec section 5).
	GetLock() bool
	// ReleaseLock releases a lock acquired by GetLock.
	ReleaseLock()
}

// Keystore remembers up to KeystoreAreas 128-bit keys so a driver need not
// reload a key it has already been given (spec section 4.3).
type Keystore struct {
	mu   sync.Mutex
	keys [KeystoreAreas]*[16]byte
}

// Store saves key under areaIndex, overwriting whatever was there.
func (k *Keystore) Store(areaIndex int, key [16]byte) error {
	if areaIndex < 0 || areaIndex >= KeystoreAreas {
		return fmt.Errorf("mac: keystore area index %d out of range", areaIndex)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	keyCopy := key
	k.keys[areaIndex] = &keyCopy
	return nil
}

// Load returns the key stored at areaIndex, or StatusKeyNotFound if none.
func (k *Keystore) Load(areaIndex int) ([16]byte, error) {
	if areaIndex < 0 || areaIndex >= KeystoreAreas {
		return [16]byte{}, StatusKeyNotFound
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	key := k.keys[areaIndex]
	if key == nil {
		return [16]byte{}, StatusKeyNotFound
	}
	return *key, nil
}

// SoftwareAES128 is the stdlib-backed AESDriver fallback (spec section 4.3).
// A real deployment would prefer a register-mapped hardware engine
// satisfying the same AESDriver contract; this is what runs when one is not
// available, and what every test in this module uses.
type SoftwareAES128 struct {
	mu      sync.Mutex
	locked  bool
	cipher  cipherBlock
	lockMu  sync.Mutex
}

type cipherBlock interface {
	Encrypt(dst, src []byte)
}

func NewSoftwareAES128() *SoftwareAES128 {
	return &SoftwareAES128{}
}

func (s *SoftwareAES128) SetKey(areaIndex int, key [16]byte) error {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return fmt.Errorf("mac: aes key schedule: %w", err)
	}
	s.mu.Lock()
	s.cipher = block
	s.mu.Unlock()
	return nil
}

func (s *SoftwareAES128) Encrypt(block *[16]byte) {
	s.mu.Lock()
	c := s.cipher
	s.mu.Unlock()
	if c == nil {
		panic("mac: SoftwareAES128.Encrypt called before SetKey")
	}
	c.Encrypt(block[:], block[:])
}

func (s *SoftwareAES128) GetLock() bool {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if s.locked {
		return false
	}
	s.locked = true
	return true
}

func (s *SoftwareAES128) ReleaseLock() {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	s.locked = false
}
