package invoker

import (
	"encoding/binary"
	"hash/fnv"
	"time"

	"adclip/internal/backend"
)

// backoffDelay computes the wait before retrying the same model: exponential
// doubling from the initial backoff, capped, with deterministic jitter
// derived from (scene, model index, try) so identical runs reproduce
// identical schedules. A server-provided Retry-After hint wins when present.
func (i *Invoker) backoffDelay(scene, modelIndex, try int, err error) time.Duration {
	if hint, ok := backend.RetryAfterHint(err); ok {
		if hint > i.opts.MaxBackoff {
			return i.opts.MaxBackoff
		}
		return hint
	}

	delay := i.opts.InitialBackoff
	for n := 1; n < try; n++ {
		delay *= 2
		if delay >= i.opts.MaxBackoff {
			delay = i.opts.MaxBackoff
			break
		}
	}

	// Jitter into [delay/2, delay) so synchronized workers spread out
	// without ever exceeding the cap.
	fraction := jitterFraction(scene, modelIndex, try)
	half := delay / 2
	return half + time.Duration(float64(half)*fraction)
}

func jitterFraction(scene, modelIndex, try int) float64 {
	hash := fnv.New64a()
	var buf [8]byte
	for _, v := range []int{scene, modelIndex, try} {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		_, _ = hash.Write(buf[:])
	}
	return float64(hash.Sum64()%1024) / 1024
}
