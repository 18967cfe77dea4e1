package gist

import "fmt"

// GistKey returns the Redis key for a gist hash.
// Pattern: playbox:{instance_name}:gist:{gist_id}
func GistKey(instanceName, gistID string) string {
	return fmt.Sprintf("playbox:%s:gist:%s", instanceName, gistID)
}

// OwnerGistsKey returns the Redis key for the ZSET of gists owned by a user.
// Pattern: playbox:{instance_name}:owner:{login}:gists
func OwnerGistsKey(instanceName, owner string) string {
	return fmt.Sprintf("playbox:%s:owner:%s:gists", instanceName, owner)
}

// GistEventsChannel returns the Pub/Sub channel name for gist events.
// Pattern: playbox:{instance_name}:gist_events
func GistEventsChannel(instanceName string) string {
	return fmt.Sprintf("playbox:%s:gist_events", instanceName)
}
