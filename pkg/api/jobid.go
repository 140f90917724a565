package api

import "math/rand"

const jobIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newJobID returns a 7-character random alphanumeric job id. Collisions
// are astronomically unlikely and are not checked.
func newJobID() string {
	b := make([]byte, 7)
	for i := range b {
		b[i] = jobIDAlphabet[rand.Intn(len(jobIDAlphabet))]
	}
	return string(b)
}
