package main

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/cerbtk/registry/client"
	"github.com/cerbtk/registry/signing"
	"github.com/cerbtk/registry/types"
)

func newClient(cCtx *cli.Context) (*client.Client, error) {
	return client.New(cCtx.GlobalString("address"))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func generateKey(kind string) (crypto.Signer, string, error) {
	switch strings.ToLower(kind) {
	case "rsa":
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		return key, "SHA256withRSA", err
	case "ecdsa", "ec":
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		return key, "SHA256withECDSA", err
	case "ed25519":
		_, key, err := ed25519.GenerateKey(rand.Reader)
		return key, "Ed25519", err
	default:
		return nil, "", fmt.Errorf("unknown key type %q", kind)
	}
}

func keygen(cCtx *cli.Context) error {
	key, alg, err := generateKey(cCtx.String("type"))
	if err != nil {
		return err
	}
	pemData, err := signing.EncodePrivateKeyPEM(key)
	if err != nil {
		return err
	}
	out := cCtx.String("out")
	if err := os.WriteFile(out, pemData, 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	pub, err := signing.EncodePublicKey(key.Public())
	if err != nil {
		return err
	}
	fmt.Printf("private key written to %s (sign with --algorithm %s)\n", out, alg)
	fmt.Println("add this line to the registry's trusted keys file:")
	fmt.Println(pub)
	return nil
}

func register(cCtx *cli.Context) error {
	pemData, err := os.ReadFile(cCtx.String("key"))
	if err != nil {
		return fmt.Errorf("reading private key: %w", err)
	}
	key, err := signing.ParsePrivateKeyPEM(pemData)
	if err != nil {
		return err
	}
	pub, err := signing.EncodePublicKey(key.Public())
	if err != nil {
		return err
	}

	deviceID := cCtx.String("device-id")
	if deviceID == "" {
		return errors.New("--device-id is required")
	}
	alg := cCtx.String("algorithm")
	p := &types.RegistrationPayload{
		DeviceID:     deviceID,
		Owner:        cCtx.String("owner"),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		PublicKey:    pub,
		FirmwareHash: types.Ptr(cCtx.String("firmware-hash")),
		BuildID:      types.Ptr(cCtx.String("build-id")),
		Recipe:       types.Ptr(cCtx.String("recipe")),
		BoardRev:     types.Ptr(cCtx.String("board-rev")),
		Algorithm:    types.Ptr(alg),
	}

	cl, err := newClient(cCtx)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if !cCtx.Bool("no-nonce") {
		entry, err := cl.Nonce(ctx, deviceID)
		if err != nil {
			return err
		}
		p.Nonce = types.Ptr(entry.Nonce)
	}
	if p.Signature, err = signing.Sign(p, key, alg); err != nil {
		return fmt.Errorf("signing payload: %w", err)
	}
	block, err := cl.RegisterPayload(ctx, p)
	if err != nil {
		return err
	}
	return printJSON(block)
}

func main() {
	app := &cli.App{
		Name:  "regclient",
		Usage: "talk to a device registry",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:   "address, a",
				Value:  "http://localhost:23230",
				Usage:  "registry REST address",
				EnvVar: "REGISTRY_ADDRESS",
			},
		},
		Commands: []cli.Command{
			{
				Name:  "keygen",
				Usage: "generate a signing key and print its trusted-keys entry",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "type", Value: "ecdsa", Usage: "rsa, ecdsa or ed25519"},
					cli.StringFlag{Name: "out", Value: "device_key.pem", Usage: "where to write the PKCS#8 private key"},
				},
				Action: keygen,
			},
			{
				Name:      "nonce",
				Usage:     "issue a nonce for a device",
				ArgsUsage: "<device-id>",
				Action: func(cCtx *cli.Context) error {
					cl, err := newClient(cCtx)
					if err != nil {
						return err
					}
					entry, err := cl.Nonce(context.Background(), cCtx.Args().First())
					if err != nil {
						return err
					}
					return printJSON(entry)
				},
			},
			{
				Name:  "register",
				Usage: "sign and submit a device registration",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "key", Value: "device_key.pem", Usage: "PKCS#8 private key"},
					cli.StringFlag{Name: "algorithm", Value: "SHA256withECDSA", Usage: "signature algorithm"},
					cli.StringFlag{Name: "device-id"},
					cli.StringFlag{Name: "owner"},
					cli.StringFlag{Name: "firmware-hash"},
					cli.StringFlag{Name: "build-id"},
					cli.StringFlag{Name: "recipe"},
					cli.StringFlag{Name: "board-rev"},
					cli.BoolFlag{Name: "no-nonce", Usage: "do not fetch and sign a nonce"},
				},
				Action: register,
			},
			{
				Name:  "head",
				Usage: "show the latest block",
				Action: func(cCtx *cli.Context) error {
					cl, err := newClient(cCtx)
					if err != nil {
						return err
					}
					head, err := cl.Head(context.Background())
					if err != nil {
						return err
					}
					return printJSON(head)
				},
			},
			{
				Name:  "anchor",
				Usage: "show the chain anchor",
				Action: func(cCtx *cli.Context) error {
					cl, err := newClient(cCtx)
					if err != nil {
						return err
					}
					anchor, err := cl.Anchor(context.Background())
					if err != nil {
						return err
					}
					fmt.Println(anchor.Anchor)
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "check chain integrity",
				Action: func(cCtx *cli.Context) error {
					cl, err := newClient(cCtx)
					if err != nil {
						return err
					}
					valid, err := cl.Validate(context.Background())
					if err != nil {
						return err
					}
					if !valid {
						return cli.NewExitError("❌ chain is invalid", 2)
					}
					fmt.Println("✅ chain is valid")
					return nil
				},
			},
			{
				Name:      "device",
				Usage:     "show the block that last registered a device",
				ArgsUsage: "<device-id>",
				Action: func(cCtx *cli.Context) error {
					cl, err := newClient(cCtx)
					if err != nil {
						return err
					}
					block, err := cl.BlockByDeviceID(context.Background(), cCtx.Args().First())
					if err != nil {
						return err
					}
					return printJSON(block)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
