// Command keytool manages the Gemini key file: generates the master
// encryption key and converts a plain key list into the encrypted envelope.
package main

import (
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"time"

	"ai-orchestrator-go/internal/credential"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

func main() {
	genKey := flag.Bool("genkey", false, "generate a new master key and write it to -keyfile")
	keyFile := flag.String("keyfile", "credentials/encryption.key", "master key location")
	encrypt := flag.String("encrypt", "", "path of a plain key list to encrypt in place")
	flag.Parse()

	switch {
	case *genKey:
		if _, err := os.Stat(*keyFile); err == nil {
			stdlog.Fatalf("refusing to overwrite existing key file %s", *keyFile)
		}
		key, err := credential.GenerateKey()
		if err != nil {
			stdlog.Fatalf("generate key: %v", err)
		}
		if err := os.WriteFile(*keyFile, []byte(key+"\n"), 0o600); err != nil {
			stdlog.Fatalf("write key file: %v", err)
		}
		fmt.Printf("master key written to %s\n", *keyFile)

	case *encrypt != "":
		if err := encryptKeyFile(*encrypt, *keyFile); err != nil {
			stdlog.Fatalf("encrypt %s: %v", *encrypt, err)
		}
		fmt.Printf("%s encrypted\n", *encrypt)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func encryptKeyFile(path, keyFile string) error {
	dec, err := credential.NewFernetDecryptor(keyFile)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	parsed := gjson.ParseBytes(data)
	if parsed.IsObject() && parsed.Get("encrypted_keys").Exists() {
		return fmt.Errorf("keys are already encrypted")
	}
	if !parsed.IsArray() {
		return fmt.Errorf("expected a JSON list of key strings")
	}

	out := "{}"
	count := 0
	for _, el := range parsed.Array() {
		if el.Type != gjson.String || el.String() == "" {
			continue
		}
		sealed, err := dec.Encrypt(el.String())
		if err != nil {
			return err
		}
		out, err = sjson.Set(out, fmt.Sprintf("encrypted_keys.%d", count), sealed)
		if err != nil {
			return err
		}
		count++
	}
	out, err = sjson.Set(out, "metadata.original_count", count)
	if err != nil {
		return err
	}
	out, err = sjson.Set(out, "metadata.encrypted_at", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}

	return os.WriteFile(path, []byte(out), 0o600)
}
