// derive_key.go prints the address and public key behind a 25-word mnemonic file.
// Usage: go run scripts/derive_key.go <mnemonicfile>
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_key <mnemonicfile>")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	phrase := strings.Join(strings.Fields(string(data)), " ")
	key, err := mnemonic.ToPrivateKey(phrase)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	acct, err := crypto.AccountFromPrivateKey(key)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("pubkey=%s\n", hex.EncodeToString(acct.PublicKey))
	fmt.Printf("address=%s\n", acct.Address.String())
}
