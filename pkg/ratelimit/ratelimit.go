// Package ratelimit admits or rejects requests per key using fixed windows.
//
// A window opens on the first hit for a key and lasts Window. Within it at most
// Limit hits are admitted. Because windows are fixed, a client can land up to
// 2x Limit hits around a window boundary.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Gate decides whether one more hit for key fits in the current window.
type Gate interface {
	Admit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Quota struct {
	Limit  int
	Window time.Duration
}

func (q Quota) String() string {
	return fmt.Sprintf("%d/%s", q.Limit, q.Window)
}

// Class buckets routes into groups with independent quotas.
type Class string

const (
	ClassAuth    Class = "auth"
	ClassAI      Class = "ai"
	ClassDefault Class = "default"
)

type Quotas map[Class]Quota

// For returns the quota of class, falling back to the default class.
func (q Quotas) For(class Class) Quota {
	if v, ok := q[class]; ok {
		return v
	}
	return q[ClassDefault]
}

// ClassOf picks the route class for a request path. Matching ignores case,
// as the router does.
func ClassOf(path string) Class {
	switch {
	case hasSegmentPrefix(path, "/auth"):
		return ClassAuth
	case hasSegmentPrefix(path, "/ai"):
		return ClassAI
	default:
		return ClassDefault
	}
}

func hasSegmentPrefix(path, prefix string) bool {
	if len(path) < len(prefix) || !strings.EqualFold(path[:len(prefix)], prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/'
}

// ClientKey identifies the caller. The first X-Forwarded-For entry wins, then
// X-Real-IP, then the peer address.
func ClientKey(forwardedFor, realIP, peer string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP = strings.TrimSpace(realIP); realIP != "" {
		return realIP
	}
	return peer
}

func Key(client string, class Class) string {
	return client + ":" + string(class)
}
