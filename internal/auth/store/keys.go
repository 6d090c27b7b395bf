package store

import "strings"

const (
	DefaultKeyPrefix = "mentorlink"

	KeySeparator = ":"

	NamespaceAuthCodes       = "auth-codes"
	NamespaceRefreshFamilies = "refresh-families"
	NamespaceBlacklist       = "blacklist"
	NamespacePendingLinks    = "pending-links"
)

// Keyspace builds the keys for the four namespaces under a shared prefix.
type Keyspace struct {
	prefix string
}

// NewKeyspace returns a Keyspace rooted at prefix, or DefaultKeyPrefix when
// prefix is empty.
func NewKeyspace(prefix string) Keyspace {
	prefix = strings.TrimSuffix(prefix, KeySeparator)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return Keyspace{prefix: prefix}
}

func (k Keyspace) Prefix() string { return k.prefix }

func (k Keyspace) join(parts ...string) string {
	return k.prefix + KeySeparator + strings.Join(parts, KeySeparator)
}

// AuthCode keys on the code's fingerprint, never the raw code.
func (k Keyspace) AuthCode(fingerprint string) string {
	return k.join(NamespaceAuthCodes, fingerprint)
}

func (k Keyspace) RefreshFamily(userID, familyID string) string {
	return k.join(NamespaceRefreshFamilies, userID, familyID)
}

// RefreshFamilies is the prefix shared by every family of userID. The
// trailing separator keeps "user-1" from matching "user-10".
func (k Keyspace) RefreshFamilies(userID string) string {
	return k.join(NamespaceRefreshFamilies, userID) + KeySeparator
}

func (k Keyspace) Blacklist(tokenID string) string {
	return k.join(NamespaceBlacklist, tokenID)
}

func (k Keyspace) PendingLink(fingerprint string) string {
	return k.join(NamespacePendingLinks, fingerprint)
}
