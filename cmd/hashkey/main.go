package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/ncecere/open_voice_gateway/internal/auth"
)

// hashkey prints a fresh gateway API key with its argon2id hash, or the
// hash of a supplied secret (for auth.admin.password_hash).
func main() {
	secret := flag.String("secret", "", "hash this value instead of generating a key")
	flag.Parse()

	value := *secret
	if value == "" {
		key, err := auth.GenerateAPIKey()
		if err != nil {
			log.Fatalf("generate key: %v", err)
		}
		value = key
		fmt.Printf("key:         %s\n", key)
		fmt.Printf("fingerprint: %s\n", auth.Fingerprint(key))
	}
	hash, err := auth.HashPassword(value)
	if err != nil {
		log.Fatalf("hash: %v", err)
	}
	fmt.Printf("hash:        %s\n", hash)
}
