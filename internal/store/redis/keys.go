package redis

const (
	// KeyPrefixMember is the prefix for member record keys
	KeyPrefixMember = "steward:member:"
	// KeyAllMembers is the key for the set of all member IDs
	KeyAllMembers = "steward:members:all"
	// KeyHealthEvents is the key for the capped health transition list
	KeyHealthEvents = "steward:events"
)

// MemberKey returns the Redis key for a member record by ID
func MemberKey(id string) string {
	return KeyPrefixMember + id
}

// AllMembersKey returns the key for the set of all member IDs
func AllMembersKey() string {
	return KeyAllMembers
}

// HealthEventsKey returns the key for the health transition list
func HealthEventsKey() string {
	return KeyHealthEvents
}
