package tcc

import (
	"math/rand"
	"sync"
	"time"
	"unsafe"
)

const (
	letterBytes   = "0123456789!@#$%^&*()_+abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	letterIdxBits = 6                    // 6 bits to represent a letter index
	letterIdxMask = 1<<letterIdxBits - 1 // All 1-bits, as many as letterIdxBits
	letterIdxMax  = 63 / letterIdxBits   // # of letter indices fitting in 63 bits
)

var shuffleLock = &sync.Mutex{}
var shuffleRandom = rand.New(rand.NewSource(time.Now().UnixNano()))

// shuffleConnections randomizes the connection order in place. Used once at
// construction when RandomizeNodes is set.
func shuffleConnections(connections []*Connection) {

	shuffleLock.Lock()
	defer shuffleLock.Unlock()

	shuffleRandom.Shuffle(len(connections), func(i, j int) {
		connections[i], connections[j] = connections[j], connections[i]
	})
}

// RandomString creates a new RandomSource to generate a RandomString unique per nanosecond.
// Source: https://stackoverflow.com/questions/22892120/how-to-generate-a-random-string-of-a-fixed-length-in-go
func RandomString(size int) string {

	src := rand.NewSource(time.Now().UnixNano())
	b := make([]byte, size)

	for i, cache, remain := size-1, src.Int63(), letterIdxMax; i >= 0; {
		if remain == 0 {
			cache, remain = src.Int63(), letterIdxMax
		}
		if idx := int(cache & letterIdxMask); idx < len(letterBytes) {
			b[i] = letterBytes[idx]
			i--
		}
		cache >>= letterIdxBits
		remain--
	}

	return *(*string)(unsafe.Pointer(&b))
}
