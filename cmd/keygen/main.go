package main

import (
	"fmt"
	"log"

	"github.com/edustack/adminmfa/pkg/totp"
)

func main() {
	// Generate a base64-encoded AES-256 key for the MFA_ENCRYPTION_KEY env var.
	encodedKey, err := totp.GenerateEncodedEncryptionKey()
	if err != nil {
		log.Fatalf("Failed to generate encryption key: %v", err)
	}

	fmt.Printf("Generated encryption key (for MFA_ENCRYPTION_KEY env var):\n———\n%s\n———\n", encodedKey)
}
