// hashpass generates the bcrypt hash for the operator password used by
// the web API. Put the output in AUTH_PASSWORD_HASH or auth.password_hash.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gmo-trading-bot/internal/auth"
)

func main() {
	var password string
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		fmt.Print("Password: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Printf("❌ Failed to read password: %v\n", err)
			os.Exit(1)
		}
		password = strings.TrimSpace(line)
	}

	if password == "" {
		fmt.Println("❌ Password cannot be empty")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Printf("❌ Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
