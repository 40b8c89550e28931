package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Params はargon2idのコストパラメータ。
type Params struct {
	MemoryKB    uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams は既定のコストパラメータを返す。
func DefaultParams() Params {
	return Params{
		MemoryKB:    64 * 1024,
		Iterations:  1,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher はパスワードダイジェストの生成と検証を行う。
//
// 新規ダイジェストはPHC形式のargon2id:
//
//	$argon2id$v=19$m=65536,t=1,p=2$<salt>$<key>
//
// 旧形式（ソルトなしSHA-256の16進64文字）も検証でき、NeedsRehashで移行対象として検出する。
type Hasher struct {
	params Params
}

// NewHasher はHasherを生成する。
func NewHasher(params Params) *Hasher {
	if params.SaltLength == 0 {
		params.SaltLength = 16
	}
	if params.KeyLength == 0 {
		params.KeyLength = 32
	}
	return &Hasher{params: params}
}

// Hash は平文パスワードからダイジェストを生成する。
func (h *Hasher) Hash(plain string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, h.params.Iterations, h.params.MemoryKB, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKB, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify は平文パスワードがダイジェストに一致するかを返す。
// 不正な形式のダイジェストはエラーにせずfalseを返す。
func (h *Hasher) Verify(plain, digest string) bool {
	if isLegacyDigest(digest) {
		sum := legacyDigest(plain)
		return subtle.ConstantTimeCompare([]byte(sum), []byte(strings.ToLower(digest))) == 1
	}

	parsed, ok := parseArgon2Digest(digest)
	if !ok {
		return false
	}

	key := argon2.IDKey([]byte(plain), parsed.salt, parsed.params.Iterations, parsed.params.MemoryKB, parsed.params.Parallelism, uint32(len(parsed.key)))
	return subtle.ConstantTimeCompare(key, parsed.key) == 1
}

// NeedsRehash はダイジェストを現在の方式で作り直すべきかを返す。
// 旧形式、解析できない形式、コストパラメータが現在値と異なる場合にtrue。
func (h *Hasher) NeedsRehash(digest string) bool {
	if isLegacyDigest(digest) {
		return true
	}
	parsed, ok := parseArgon2Digest(digest)
	if !ok {
		return true
	}
	p := parsed.params
	return p.MemoryKB != h.params.MemoryKB ||
		p.Iterations != h.params.Iterations ||
		p.Parallelism != h.params.Parallelism ||
		uint32(len(parsed.key)) != h.params.KeyLength
}

type argon2Digest struct {
	params Params
	salt   []byte
	key    []byte
}

func parseArgon2Digest(digest string) (*argon2Digest, bool) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, false
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKB, &p.Iterations, &p.Parallelism); err != nil {
		return nil, false
	}
	if p.MemoryKB == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, false
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, false
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	return &argon2Digest{params: p, salt: salt, key: key}, true
}

// isLegacyDigest は旧形式（SHA-256の16進表記）かどうかを判定する。
func isLegacyDigest(digest string) bool {
	if len(digest) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(digest)
	return err == nil
}

func legacyDigest(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
