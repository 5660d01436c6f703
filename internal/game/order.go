package game

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math/rand/v2"
	"strconv"
)

// SeedFor derives the shuffle seed for one attempt of a session.
func SeedFor(userID, topicID, sessionID string, attemptNo int) string {
	sum := sha256.Sum256([]byte(userID + ":" + topicID + ":" + sessionID + ":" + strconv.Itoa(attemptNo)))
	return hex.EncodeToString(sum[:16])
}

func rngFromSeed(seed string) *rand.Rand {
	sum := sha256.Sum256([]byte(seed))
	return rand.New(rand.NewPCG(binary.BigEndian.Uint64(sum[0:8]), binary.BigEndian.Uint64(sum[8:16])))
}

// SelectOrder picks n question ids from bank.
//
// When the bank holds at least n ids they are shuffled and drawn without
// replacement. Otherwise the bank is replayed in successive shuffled passes,
// and the first id of a pass is swapped out whenever it would repeat the
// previous id. A single-question bank necessarily repeats.
func SelectOrder(bank []string, n int, seed string) []string {
	if n <= 0 || len(bank) == 0 {
		return nil
	}
	rng := rngFromSeed(seed)

	if len(bank) >= n {
		ids := append([]string(nil), bank...)
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		return ids[:n]
	}

	order := make([]string, 0, n)
	for len(order) < n {
		pass := append([]string(nil), bank...)
		rng.Shuffle(len(pass), func(i, j int) { pass[i], pass[j] = pass[j], pass[i] })
		if len(order) > 0 && len(pass) > 1 && pass[0] == order[len(order)-1] {
			k := 1 + rng.IntN(len(pass)-1)
			pass[0], pass[k] = pass[k], pass[0]
		}
		for _, id := range pass {
			if len(order) == n {
				break
			}
			order = append(order, id)
		}
	}
	return order
}
