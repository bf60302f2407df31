package models

import (
	"sort"
	"strings"
)

const threadSeparator = ":"

// ThreadKey derives the identifier of the conversation between a and b.
// The key is commutative: ThreadKey(a, b) == ThreadKey(b, a).
func ThreadKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, threadSeparator)
}

// ThreadParticipants splits a thread key back into its two user IDs.
// User IDs must not contain the separator.
func ThreadParticipants(threadID string) (string, string, bool) {
	a, b, ok := strings.Cut(threadID, threadSeparator)
	if !ok || a == "" || b == "" || strings.Contains(b, threadSeparator) {
		return "", "", false
	}
	return a, b, true
}

// IsThreadParticipant reports whether userID is one of the two users of threadID.
func IsThreadParticipant(threadID, userID string) bool {
	a, b, ok := ThreadParticipants(threadID)
	return ok && (userID == a || userID == b)
}
