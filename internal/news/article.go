package news

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Article is a single normalized news item. The URL is the identity key: two
// articles sharing a URL collapse to one indexed record, last write wins.
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Content     string    `json:"content,omitempty"`
	Summary     string    `json:"summary,omitempty"`
}

// Identity derives the index primary key for a URL: SHA-256 truncated to the
// positive 63-bit integer space. Deterministic across restarts. Collisions
// between distinct URLs are possible but accepted for news dedup.
func Identity(url string) int64 {
	sum := sha256.Sum256([]byte(url))
	return int64(binary.BigEndian.Uint64(sum[:8]) & math.MaxInt64)
}

// ObjectID maps an identity to the vector store object id. It is a pure
// function of the identity, so writes for the same URL always target the same
// object and behave as an upsert.
func ObjectID(identity int64) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strconv.FormatInt(identity, 10))).String()
}

// EmbeddingText is the text submitted to the embedding provider for an
// article: title, summary and content in a fixed order.
func (a Article) EmbeddingText() string {
	return strings.Join([]string{a.Title, a.Summary, a.Content}, ". ")
}
