package asset

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"
)

const defaultHashCacheSize = 4096

// racyWindow covers filesystem timestamp resolution. A file whose change
// time falls this close to the moment it was hashed may be rewritten again
// without any visible stat difference, so its cached digest is not trusted.
const racyWindow = 2 * time.Second

// Fingerprint is the hex BLAKE3 digest of an asset's bytes.
type Fingerprint string

func (f Fingerprint) String() string {
	return string(f)
}

// Short is a prefix of the fingerprint for log output.
func (f Fingerprint) Short() string {
	if len(f) <= 12 {
		return string(f)
	}
	return string(f[:12])
}

// HashBytes fingerprints an in-memory buffer.
func HashBytes(data []byte) Fingerprint {
	sum := blake3.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// HashReader fingerprints everything read from r.
func HashReader(r io.Reader) (Fingerprint, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

type statKey struct {
	size    int64
	modTime time.Time
	ino     uint64
	ctime   time.Time
}

func newStatKey(info os.FileInfo) statKey {
	ino, ctime := fileIdentity(info)
	return statKey{size: info.Size(), modTime: info.ModTime(), ino: ino, ctime: ctime}
}

type cachedHash struct {
	stat     statKey
	fp       Fingerprint
	hashedAt time.Time
}

// fresh reports whether the entry still describes a file with stat key.
func (c cachedHash) fresh(key statKey) bool {
	if !c.stat.modTime.Equal(key.modTime) || !c.stat.ctime.Equal(key.ctime) {
		return false
	}
	if c.stat.size != key.size || c.stat.ino != key.ino {
		return false
	}
	return key.ctime.Before(c.hashedAt.Add(-racyWindow))
}

// Hasher fingerprints files on disk. Results are cached per path and reused
// while the file's size, inode, modification and change times are unchanged,
// which keeps repeated watch passes from re-reading every asset.
type Hasher struct {
	cache *lru.Cache[string, cachedHash]
}

// NewHasher creates a hasher caching up to size entries; size <= 0 uses a default.
func NewHasher(size int) *Hasher {
	if size <= 0 {
		size = defaultHashCacheSize
	}
	cache, _ := lru.New[string, cachedHash](size)
	return &Hasher{cache: cache}
}

// HashFile returns the fingerprint and size of the file at path.
func (h *Hasher) HashFile(path string) (Fingerprint, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open '%s': %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("stat '%s': %w", path, err)
	}
	key := newStatKey(info)

	if cached, ok := h.cache.Get(path); ok && cached.fresh(key) {
		return cached.fp, key.size, nil
	}

	hashedAt := time.Now()
	fp, err := HashReader(file)
	if err != nil {
		return "", 0, fmt.Errorf("hash '%s': %w", path, err)
	}
	h.cache.Add(path, cachedHash{stat: key, fp: fp, hashedAt: hashedAt})
	return fp, key.size, nil
}
