// Package gist provides a Redis-backed store for saved game programs ("gists").
//
// # Overview
//
// A gist is a named set of files (the assembled game source in code.js plus one JSON
// file per non-empty asset table) owned by a single user. The playground creates a new
// gist the first time a user saves and updates it on later saves, as long as the user
// owns it; saving someone else's gist creates a fork owned by the saver.
//
// # Keys
//
// All keys and Pub/Sub channels are namespaced by instance name so several playground
// instances can share one Redis server:
//
//	playbox:{instance}:gist:{id}            hash with the gist fields
//	playbox:{instance}:owner:{login}:gists  ZSET of gist ids scored by creation time
//	playbox:{instance}:gist_events          channel carrying create/update events
//
// # Usage Example
//
//	client, err := gist.NewClient(&redis.Options{Addr: "localhost:6379"}, "default")
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	g, err := client.Create(ctx, "alice", gist.Payload{
//	    Public:      true,
//	    Description: "my game",
//	    Files:       map[string]string{"code.js": source},
//	})
package gist
